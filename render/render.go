package main

/*
This application renders the results of interference and attenuation sweeps,
either as a PRR heatmap (TX/RX PHY against interferer PHY) or as line charts
(one line per TX/RX PHY).

Records are read from a sqlite DB filled by the analyzer, the collection or
the server, or from result CSV files named after their sweep setup.
*/

import (
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"gonum.org/v1/plot/vg"

	"github.com/tinstructor/interference/experiment"
	"github.com/tinstructor/interference/export"
	"github.com/tinstructor/interference/extraction"
	"github.com/tinstructor/interference/filter"
)

// Flags
var (
	sqliteFile = flag.String("sqliteFile", "", "File path of the sqlite DB file to read records from. CSV files given as arguments are read otherwise.")
	identifier = flag.String("id", "", "Select records of this run (SQL LIKE pattern).")
	csvFormat  = flag.String("format", "prr", "Format of the CSV files (one of: prr, rssi, dual).")
	chart      = flag.String("chart", "heatmap", "Chart to render (one of: heatmap, line).")
	value      = flag.String("value", "prr", "Value shown in a heatmap (one of: prr, ifprr).")
	xAxis      = flag.String("x", "sir", "X axis of a line chart (one of: rssi, sir, offset, attenuation, overlap).")
	trx        = flag.String("trx", "", "Comma separated TX/RX PHY labels to keep, empty keeps all.")
	interferer = flag.String("if", "", "Comma separated interferer PHY labels to keep, empty keeps all.")
	minPRR     = flag.Float64("minPRR", 0, "Drop records with a PRR below this value.")
	title      = flag.String("title", "", "Title of the chart.")
	annotate   = flag.Bool("annotate", true, "Print the value into every heatmap cell.")
	cellSize   = flag.Int("cellSize", 60, "Size of a heatmap cell in pixels.")
	imgPath    = flag.String("imgPath", "/tmp/out.png", "Path where the rendered image should be written to.")
	imgWidth   = flag.Float64("imgWidth", 16, "Width of a line chart in cm.")
	imgHeight  = flag.Float64("imgHeight", 10, "Height of a line chart in cm.")
)

func splitLabels(s string) []string {
	var out []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// loadCSVFiles reads result CSV files, taking the sweep setup of each from its name.
func loadCSVFiles(paths []string, format string) ([]experiment.Record, error) {
	var records []experiment.Record
	for _, path := range paths {
		setup, err := experiment.ParseFileName(path)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		recs, err := extraction.LoadCSV(f, format, setup)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %s", path, err)
		}
		for i := range recs {
			recs[i].Source = filepath.Base(path)
		}
		records = append(records, recs...)
	}
	return records, nil
}

func loadSQLite(path, id string) ([]experiment.Record, error) {
	s, err := export.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	defer s.DB.Close()
	return extraction.QueryRecords(s.DB, &extraction.FilterOptions{Identifier: id})
}

func heatmapValue(name string) (extraction.Value, string, error) {
	switch strings.ToLower(name) {
	case "prr":
		return extraction.PRR, "PRR", nil
	case "ifprr":
		return extraction.IFPRR, "Interferer PRR", nil
	}
	return nil, "", fmt.Errorf("%q is not a supported heatmap value, pick one of: prr, ifprr", name)
}

func lineAxis(name string) (extraction.Axis, string, error) {
	switch strings.ToLower(name) {
	case "rssi":
		return extraction.AverageRSSI, "Average RSSI [dBm]", nil
	case "sir":
		return extraction.SIR, "SIR [dB]", nil
	case "offset":
		return extraction.Offset, "Offset [µs]", nil
	case "attenuation":
		return extraction.Attenuation, "Attenuation [dB]", nil
	case "overlap":
		return extraction.Overlap, "Overlap [%]", nil
	}
	return nil, "", fmt.Errorf("%q is not a supported x axis, pick one of: rssi, sir, offset, attenuation, overlap", name)
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	default:
		return fmt.Errorf("unsupported image format %q, use .png or .jpg", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	var records []experiment.Record
	var err error
	if *sqliteFile != "" {
		records, err = loadSQLite(*sqliteFile, *identifier)
	} else {
		if flag.NArg() == 0 {
			glog.Exit("no input, pass -sqliteFile or CSV files as arguments")
		}
		records, err = loadCSVFiles(flag.Args(), *csvFormat)
	}
	if err != nil {
		glog.Exit(err)
	}

	records = filter.Apply(records, []filter.Filterer{
		&filter.FilterPHY{TRX: splitLabels(*trx), IF: splitLabels(*interferer)},
		&filter.FilterMinPRR{Min: *minPRR},
	})
	if len(records) == 0 {
		glog.Exit("no records left to render")
	}
	fmt.Printf("Rendering %d records\n", len(records))

	switch strings.ToLower(*chart) {
	case "heatmap":
		val, name, err := heatmapValue(*value)
		if err != nil {
			glog.Exit(err)
		}
		if *title != "" {
			name = *title
		}
		m := extraction.NewMatrix(name, records, val)
		img := extraction.DrawHeatmap(m, &extraction.ImageOptions{CellSize: *cellSize, Annotate: *annotate})
		if err := writeImage(*imgPath, img); err != nil {
			glog.Exitf("unable to write image %q: %s", *imgPath, err)
		}
	case "line":
		x, xLabel, err := lineAxis(*xAxis)
		if err != nil {
			glog.Exit(err)
		}
		p, err := extraction.NewPlot(extraction.NewSeries(records, x, extraction.PRR), &extraction.ChartOptions{
			Title:  *title,
			XLabel: xLabel,
			YLabel: "PRR",
			YMin:   -0.05,
			YMax:   1.05,
		})
		if err != nil {
			glog.Exit(err)
		}
		if err := p.Save(vg.Length(*imgWidth)*vg.Centimeter, vg.Length(*imgHeight)*vg.Centimeter, *imgPath); err != nil {
			glog.Exitf("unable to write chart %q: %s", *imgPath, err)
		}
	default:
		glog.Exitf("%q is not a supported chart, pick one of: heatmap, line", *chart)
	}
	fmt.Printf("Wrote %q\n", *imgPath)
}
