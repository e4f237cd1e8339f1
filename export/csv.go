package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/tinstructor/interference/experiment"
)

// Format selects the columns written after the two PHY labels.
type Format int

const (
	// FormatPRR writes the packet reception ratio.
	FormatPRR Format = iota
	// FormatRSSI writes the packet reception ratio and the average RSSI.
	FormatRSSI
	// FormatDual writes the receiver PRR and the interferer PRR.
	FormatDual
)

const defaultPrecision = 2

// ParseFormat returns the Format named prr, rssi or dual.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "prr":
		return FormatPRR, nil
	case "rssi":
		return FormatRSSI, nil
	case "dual":
		return FormatDual, nil
	}
	return FormatPRR, fmt.Errorf("%q is not a supported CSV format, pick one of: prr, rssi, dual", name)
}

// CSV writes one row per record without a header, in the order records arrive.
type CSV struct {
	// Path of the output file. Rows go to Out when Path is empty.
	Path string
	Out  io.Writer
	// Append to an existing file instead of truncating it.
	Append bool

	Format Format
	// Precision is the amount of decimals of the PRR column in FormatPRR.
	Precision int
}

func (c *CSV) Write(ctx context.Context, records <-chan experiment.Record) error {
	out := c.Out
	if c.Path != "" {
		f, err := c.open()
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if out == nil {
		out = os.Stdout
	}

	w := csv.NewWriter(out)
	count := 0
	for rec := range records {
		if err := w.Write(c.row(rec)); err != nil {
			return fmt.Errorf("unable to write CSV row for experiment %d: %w", rec.Index, err)
		}
		count++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error flushing CSV: %w", err)
	}
	glog.V(1).Infof("wrote %d CSV rows to %q\n", count, c.Path)
	return nil
}

func (c *CSV) row(rec experiment.Record) []string {
	row := []string{rec.TRXPHY, rec.IFPHY}
	switch c.Format {
	case FormatRSSI:
		row = append(row, ff(rec.PacketSuccess(), 3), ff(rec.AverageRSSI(), 2))
	case FormatDual:
		row = append(row, ff(rec.PacketSuccess(), 3), ff(rec.IFPacketSuccess(), 2))
	default:
		prec := c.Precision
		if prec <= 0 {
			prec = defaultPrecision
		}
		row = append(row, ff(rec.PacketSuccess(), prec))
	}
	return row
}

func (c *CSV) open() (*os.File, error) {
	if err := EnsureDir(filepath.Dir(c.Path)); err != nil {
		return nil, err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if c.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(c.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open CSV file %q: %w", c.Path, err)
	}
	return f, nil
}

// EnsureDir creates dir and its parents if they don't exist yet. A directory
// created concurrently by someone else isn't an error.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("unable to create directory %q: %w", dir, err)
	}
	return nil
}

func ff(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
