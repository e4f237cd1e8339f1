package export

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tinstructor/interference/experiment"
)

const reportSeparator = "---------------------------------------------------"

// Report prints a human readable summary of every experiment.
type Report struct {
	W io.Writer
}

func (r *Report) Write(ctx context.Context, records <-chan experiment.Record) error {
	w := r.W
	if w == nil {
		w = os.Stdout
	}
	for rec := range records {
		if _, err := fmt.Fprint(w, FormatReport(rec)); err != nil {
			return err
		}
	}
	return nil
}

// FormatReport renders the summary block of a single experiment.
func FormatReport(rec experiment.Record) string {
	s := fmt.Sprintf("Results of experiment %d:\n\n", rec.Index)
	s += fmt.Sprintf("PHY of TX and RX:\t%s\n", rec.TRXPHY)
	s += fmt.Sprintf("PHY of IF:\t\t%s\n", rec.IFPHY)
	s += fmt.Sprintf("PRR:\t\t\t%.2f\n", rec.PacketSuccess())
	if rec.HasRSSI {
		s += fmt.Sprintf("Average RSSI:\t\t%.2f\n", rec.AverageRSSI())
	}
	if rec.HasIF {
		s += fmt.Sprintf("IF PRR:\t\t\t%.2f\n", rec.IFPacketSuccess())
	}
	return s + reportSeparator + "\n"
}
