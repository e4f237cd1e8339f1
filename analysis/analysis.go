// Package analysis turns raw receiver logs into per-experiment reception statistics.
//
// A log is a sequence of experiment segments. Every received packet shows up as
// a line containing "PKT -" (or an RSSI reading), and every segment is terminated
// by a line containing "PHY". Segments map onto the PHY pairs of the sweep in
// row-major order: the transmitter/receiver PHY cycles fastest and every full
// wrap advances the interferer PHY by one.
package analysis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/tinstructor/interference/experiment"
)

const (
	// DefaultNumTX is the amount of transmissions per experiment unless told otherwise.
	DefaultNumTX = 100

	maxLineSize = 1024 * 1024
)

var (
	packetRE   = regexp.MustCompile(`^.*?PKT *?-`)
	rssiRE     = regexp.MustCompile(`^.*?rssi: (?P<rssi>[+-]?\d+).*?`)
	boundaryRE = regexp.MustCompile(`^.*?PHY`)

	rssiIdx = rssiRE.SubexpIndex("rssi")
)

var (
	// ErrConfig is returned for an unusable analyzer configuration.
	ErrConfig = errors.New("invalid analyzer configuration")
	// ErrDesync is returned when the logs of a dual-sided analysis disagree on
	// the experiments they contain.
	ErrDesync = errors.New("logs out of sync")
	// ErrMissingBoundary is returned when a single-experiment log has no PHY line.
	ErrMissingBoundary = errors.New("no experiment boundary in log")
)

// Policy decides how a line matching both the packet and the boundary pattern is treated.
type Policy int

const (
	// Independent tests both patterns on every line and applies both effects.
	Independent Policy = iota
	// Exclusive only tests the boundary pattern when the packet pattern didn't match.
	Exclusive
)

func (p Policy) String() string {
	switch p {
	case Independent:
		return "independent"
	case Exclusive:
		return "exclusive"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

type Options struct {
	// TRXPHYs are the transmitter/receiver PHY labels in sweep order.
	TRXPHYs []string
	// IFPHYs are the interferer PHY labels in sweep order.
	IFPHYs []string
	// NumTX is the amount of transmissions per experiment, identical for the whole sweep.
	NumTX int

	Policy Policy
	// RSSI also counts lines carrying an "rssi: <n>" reading as receptions and
	// sums up the readings.
	RSSI bool
}

func (o *Options) Validate() error {
	if len(o.TRXPHYs) == 0 {
		return fmt.Errorf("%w: no transmitter PHY configured", ErrConfig)
	}
	if len(o.IFPHYs) == 0 {
		return fmt.Errorf("%w: no interferer PHY configured", ErrConfig)
	}
	if o.NumTX <= 0 {
		return fmt.Errorf("%w: %w", ErrConfig, experiment.ErrInvalidBudget)
	}
	return nil
}

// Experiments returns the number of PHY pairs in the sweep.
func (o *Options) Experiments() int {
	return len(o.TRXPHYs) * len(o.IFPHYs)
}

// Cursor points at the experiment configuration currently being scanned.
type Cursor struct {
	TRX   int
	IF    int
	Index int
}

// Next returns the cursor of the following experiment for numTRX transmitter PHYs.
func (c Cursor) Next(numTRX int) Cursor {
	if c.TRX >= numTRX-1 {
		return Cursor{TRX: 0, IF: c.IF + 1, Index: c.Index + 1}
	}
	return Cursor{TRX: c.TRX + 1, IF: c.IF, Index: c.Index + 1}
}

// Done reports whether all numTRX*numIF experiments have been visited.
func (c Cursor) Done(numTRX, numIF int) bool {
	return c.Index >= numTRX*numIF
}

type Analyzer struct {
	opts Options
}

func New(opts Options) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{opts: opts}, nil
}

// Scan reads r once and sends every finalized experiment record to out as soon
// as its boundary line is seen. It stops after the last experiment of the sweep
// or at the end of r, whichever comes first. out isn't closed.
func (a *Analyzer) Scan(ctx context.Context, r io.Reader, out chan<- experiment.Record) error {
	return a.scan(r, func(rec experiment.Record) error {
		select {
		case out <- rec:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Analyze returns the records of all experiments in r in scan order.
func (a *Analyzer) Analyze(r io.Reader) ([]experiment.Record, error) {
	var records []experiment.Record
	err := a.scan(r, func(rec experiment.Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AnalyzeDual combines a receiver log and an interferer log of the same sweep.
// The receiver log provides the reception count and RSSI, the interferer log
// the interferer-side reception count.
func (a *Analyzer) AnalyzeDual(rxLog, ifLog io.Reader) ([]experiment.Record, error) {
	rxRecords, err := a.Analyze(rxLog)
	if err != nil {
		return nil, fmt.Errorf("receiver log: %w", err)
	}
	ifRecords, err := a.Analyze(ifLog)
	if err != nil {
		return nil, fmt.Errorf("interferer log: %w", err)
	}
	if len(rxRecords) != len(ifRecords) {
		return nil, fmt.Errorf("%w: receiver log has %d experiments, interferer log has %d", ErrDesync, len(rxRecords), len(ifRecords))
	}

	records := make([]experiment.Record, 0, len(rxRecords))
	for i, rx := range rxRecords {
		res, err := experiment.NewResult(a.opts.NumTX, rx.TRXPHY, rx.IFPHY)
		if err != nil {
			return nil, err
		}
		if err := res.SetRxCount(rx.RXCount); err != nil {
			return nil, fmt.Errorf("experiment %d: %w", i, err)
		}
		if rx.HasRSSI {
			res.AddRSSI(rx.RSSISum)
		}
		if err := res.SetIFRxCount(ifRecords[i].RXCount); err != nil {
			return nil, fmt.Errorf("experiment %d: %w", i, err)
		}
		records = append(records, res.Finalize(i))
	}
	return records, nil
}

// AnalyzeSegment analyzes a log holding a single experiment whose configuration
// is supplied by the caller rather than cycled. index is the experiment index
// the resulting record gets.
func AnalyzeSegment(r io.Reader, index int, opts Options) (experiment.Record, error) {
	if len(opts.TRXPHYs) != 1 || len(opts.IFPHYs) != 1 {
		return experiment.Record{}, fmt.Errorf("%w: a single experiment needs exactly one PHY pair", ErrConfig)
	}
	a, err := New(opts)
	if err != nil {
		return experiment.Record{}, err
	}
	records, err := a.Analyze(r)
	if err != nil {
		return experiment.Record{}, err
	}
	if len(records) == 0 {
		return experiment.Record{}, ErrMissingBoundary
	}
	rec := records[0]
	rec.Index = index
	return rec, nil
}

func (a *Analyzer) scan(r io.Reader, emit func(experiment.Record) error) error {
	numTRX, numIF := len(a.opts.TRXPHYs), len(a.opts.IFPHYs)
	cur := Cursor{}
	current, err := a.newResult(cur)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRightFunc(scanner.Text(), func(r rune) bool {
			return r == ' ' || r == '\t' || r == '\r' || r == '\n'
		})
		glog.V(3).Info(line)

		isPacket, reading, hasReading := a.matchPacket(line)
		isBoundary := boundaryRE.MatchString(line)
		if a.opts.Policy == Exclusive && isPacket {
			isBoundary = false
		}

		if isPacket {
			if err := current.SetRxCount(current.RxCount() + 1); err != nil {
				return fmt.Errorf("line %d, experiment %d: %w", lineNum, cur.Index, err)
			}
			if hasReading {
				current.AddRSSI(reading)
			}
		}

		if isBoundary {
			if err := emit(current.Finalize(cur.Index)); err != nil {
				return err
			}
			cur = cur.Next(numTRX)
			if cur.Done(numTRX, numIF) {
				return nil
			}
			if current, err = a.newResult(cur); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("unable to read log: %w", err)
	}

	glog.Warningf("log ended after %d of %d experiments, dropping unterminated experiment with %d receptions\n", cur.Index, numTRX*numIF, current.RxCount())
	return nil
}

func (a *Analyzer) newResult(c Cursor) (*experiment.Result, error) {
	return experiment.NewResult(a.opts.NumTX, a.opts.TRXPHYs[c.TRX], a.opts.IFPHYs[c.IF])
}

// matchPacket reports whether line marks a received packet and returns the RSSI
// reading it carries, if any.
func (a *Analyzer) matchPacket(line string) (bool, float64, bool) {
	isPacket := packetRE.MatchString(line)
	if !a.opts.RSSI {
		return isPacket, 0, false
	}
	m := rssiRE.FindStringSubmatch(line)
	if m == nil {
		return isPacket, 0, false
	}
	v, err := strconv.ParseFloat(m[rssiIdx], 64)
	if err != nil {
		// Can't happen with the digits-only capture group.
		return true, 0, false
	}
	return true, v, true
}
