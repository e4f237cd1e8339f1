package extraction

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/jszwec/csvutil"

	"github.com/tinstructor/interference/experiment"
)

// csvScale is the amount of transmissions records loaded from CSV are scaled
// to. Ratios in CSV files carry at most three decimals, so they survive the
// round trip through integer counters.
const csvScale = 1000

type csvRow struct {
	TRXPHY string  `csv:"trx"`
	IFPHY  string  `csv:"if"`
	PRR    float64 `csv:"prr"`
	Extra  float64 `csv:"extra"`
}

// LoadCSV reads result rows written by export.CSV back into records. format is
// one of "prr", "rssi" or "dual" and must match what the file was written with.
func LoadCSV(r io.Reader, format string, setup experiment.Setup) ([]experiment.Record, error) {
	header := []string{"trx", "if", "prr"}
	if format == "rssi" || format == "dual" {
		header = append(header, "extra")
	}
	dec, err := csvutil.NewDecoder(csv.NewReader(r), header...)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var records []experiment.Record
	for {
		var row csvRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records), err)
		}
		rec := experiment.Record{
			Index:   len(records),
			Setup:   setup,
			TRXPHY:  row.TRXPHY,
			IFPHY:   row.IFPHY,
			TXCount: csvScale,
			RXCount: int(math.Round(row.PRR * csvScale)),
		}
		switch format {
		case "rssi":
			rec.HasRSSI = true
			rec.RSSISum = row.Extra * float64(rec.RXCount)
		case "dual":
			rec.HasIF = true
			rec.IFRXCount = int(math.Round(row.Extra * csvScale))
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, nil
}
