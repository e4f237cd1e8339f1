package extraction

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"github.com/tinstructor/interference/experiment"
	"github.com/tinstructor/interference/timing"
)

// Series is one line of a chart.
type Series struct {
	Name   string
	Points plotter.XYs
}

// Axis picks a coordinate for a record.
type Axis func(experiment.Record) float64

func AverageRSSI(r experiment.Record) float64 { return r.AverageRSSI() }
func SIR(r experiment.Record) float64         { return float64(r.Setup.SIR) }
func Offset(r experiment.Record) float64      { return float64(r.Setup.OffsetUS) }
func Attenuation(r experiment.Record) float64 { return float64(r.Setup.Attenuation) }

// Overlap is how much of the frame under test the interferer covers, in
// percent. It is NaN for PHYs without OFDM airtime parameters.
func Overlap(r experiment.Record) float64 {
	trxPHY, err := experiment.Lookup(experiment.DefaultPHYs, r.TRXPHY)
	if err != nil {
		return math.NaN()
	}
	ifPHY, err := experiment.Lookup(experiment.DefaultPHYs, r.IFPHY)
	if err != nil {
		return math.NaN()
	}
	pct, err := timing.PayloadOverlap(ifPHY.MCS, trxPHY.MCS, r.Setup.IFPayload, r.Setup.TRXPayload, r.Setup.OffsetUS, r.Setup.Prefix == experiment.PrefixPFHR)
	if err != nil {
		return math.NaN()
	}
	return pct
}

// NewSeries groups records by transmitter PHY, in first-seen order, and turns
// each group into points sorted by x. Records without a defined x or y are left out.
func NewSeries(records []experiment.Record, x, y Axis) []Series {
	var series []Series
	idx := map[string]int{}
	for _, r := range records {
		i, ok := idx[r.TRXPHY]
		if !ok {
			i = len(series)
			idx[r.TRXPHY] = i
			series = append(series, Series{Name: ShortLabel(r.TRXPHY)})
		}
		pt := plotter.XY{X: x(r), Y: y(r)}
		if math.IsNaN(pt.X) || math.IsNaN(pt.Y) {
			continue
		}
		series[i].Points = append(series[i].Points, pt)
	}
	for _, s := range series {
		sort.SliceStable(s.Points, func(a, b int) bool { return s.Points[a].X < s.Points[b].X })
	}
	return series
}

type ChartOptions struct {
	Title  string
	XLabel string
	YLabel string
	// YMin and YMax fix the Y axis range when they differ.
	YMin float64
	YMax float64
}

// NewPlot draws every series as a line with markers.
func NewPlot(series []Series, opts *ChartOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	if opts.YMin != opts.YMax {
		p.Y.Min = opts.YMin
		p.Y.Max = opts.YMax
	}
	p.Legend.Top = false
	p.Legend.Left = false
	p.Add(plotter.NewGrid())

	for i, s := range series {
		line, points, err := plotter.NewLinePoints(s.Points)
		if err != nil {
			return nil, fmt.Errorf("series %q: %s", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(s.Name, line, points)
	}
	return p, nil
}
