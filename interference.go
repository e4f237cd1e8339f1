package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/tinstructor/interference/analysis"
	"github.com/tinstructor/interference/experiment"
	"github.com/tinstructor/interference/export"
	"github.com/tinstructor/interference/filter"
)

// Flags
var (
	appendCSV   = flag.Bool("append", false, "append rows to csvfile instead of overwriting it")
	interferer  = flag.String("interferer", "", "restrict the sweep to this interferer PHY label")
	transmitter = flag.String("transmitter", "", "restrict the sweep to this transmitter/receiver PHY label")
	numTX       = flag.Int("numtx", analysis.DefaultNumTX, "amount of packets transmitted per experiment")
	precision   = flag.Int("precision", 2, "decimals of the PRR column (2 or 3)")
	rssi        = flag.Bool("rssi", false, "count RSSI lines as receptions and report the average RSSI")
	exclusive   = flag.Bool("exclusive", false, "only test for a PHY boundary on lines that aren't packets")
	ifLog       = flag.String("ifLog", "", "log of the interferer node for dual-sided accounting")
	minPRR      = flag.Float64("minPRR", 0, "only export experiments with at least this PRR")
	report      = flag.Bool("report", false, "print a human readable report of every experiment")
	identifier  = flag.String("id", "", "unique identifier of this analysis run (defaults to a random UUID)")
	output      = flag.String("output", "csv", "comma separated export mechanisms to use (csv, sqlite, mysql, server)")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "/tmp/interference", "File path of the sqlite DB file to use.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "interference", "Name of the DB to use.")

	// Interference Server
	collectServer        = flag.String("server", "http://localhost:8443/", "URL scheme, address and port of the interference server.")
	collectServerRecords = flag.Int("serverRecords", 0, "Defines how many records should be sent to the server at once.")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] logfile csvfile\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

// analyzerOptions builds the sweep configuration from the command line.
func analyzerOptions(trx, ifPHY string, numTX int, rssi, exclusive bool) (analysis.Options, error) {
	labels := experiment.Labels(experiment.DefaultPHYs)
	opts := analysis.Options{
		TRXPHYs: labels,
		IFPHYs:  labels,
		NumTX:   numTX,
		RSSI:    rssi,
	}
	if exclusive {
		opts.Policy = analysis.Exclusive
	}
	var err error
	if trx != "" {
		if opts.TRXPHYs, err = experiment.Restrict(labels, trx); err != nil {
			return analysis.Options{}, err
		}
	}
	if ifPHY != "" {
		if opts.IFPHYs, err = experiment.Restrict(labels, ifPHY); err != nil {
			return analysis.Options{}, err
		}
	}
	return opts, opts.Validate()
}

// csvFormat picks the CSV columns matching the analysis mode.
func csvFormat(rssi, dual bool) export.Format {
	switch {
	case dual:
		return export.FormatDual
	case rssi:
		return export.FormatRSSI
	}
	return export.FormatPRR
}

// annotate stamps every record with where it came from.
func annotate(in <-chan experiment.Record, out chan<- experiment.Record, id, source string, setup experiment.Setup) {
	defer close(out)
	for rec := range in {
		rec.Identifier = id
		rec.Source = source
		rec.Setup = setup
		out <- rec
	}
}

func newExporters(ctx context.Context, outputs string, csvPath string, format export.Format) ([]export.Exporter, error) {
	var exporters []export.Exporter
	for _, o := range strings.Split(outputs, ",") {
		switch strings.ToLower(strings.TrimSpace(o)) {
		case "":
			continue
		case "csv":
			if *precision != 2 && *precision != 3 {
				return nil, fmt.Errorf("precision %d not supported, pick one of: 2, 3", *precision)
			}
			exporters = append(exporters, &export.CSV{
				Path:      csvPath,
				Append:    *appendCSV,
				Format:    format,
				Precision: *precision,
			})
		case "sqlite":
			s, err := export.OpenSQLite(*sqliteFile)
			if err != nil {
				return nil, err
			}
			exporters = append(exporters, s)
		case "mysql":
			s, err := export.OpenMySQL(&export.MySQLOptions{
				Server:       *mysqlServer,
				User:         *mysqlUser,
				PasswordFile: *mysqlPasswordFile,
				DBName:       *mysqlDBName,
			})
			if err != nil {
				return nil, err
			}
			if err := s.DB.PingContext(ctx); err != nil {
				return nil, fmt.Errorf("unable to reach MySQL DB %q: %s", *mysqlServer, err)
			}
			exporters = append(exporters, s)
		case "server":
			exporters = append(exporters, &export.Server{
				Server:            *collectServer,
				SendRecordsAmount: *collectServerRecords,
			})
		default:
			return nil, fmt.Errorf("%q is not a supported export method, pick one of: csv, sqlite, mysql, server", o)
		}
	}
	if *report {
		exporters = append(exporters, &export.Report{W: os.Stdout})
	}
	if len(exporters) == 0 {
		return nil, fmt.Errorf("no export method selected")
	}
	return exporters, nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	flag.Usage = usage
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() != 2 {
		usage()
		glog.Exitf("expected 2 positional arguments (logfile csvfile), got %d", flag.NArg())
	}
	logFile, csvFile := flag.Arg(0), flag.Arg(1)

	if *identifier == "" {
		*identifier = uuid.NewString()
	}

	// Analyzer setup
	opts, err := analyzerOptions(*transmitter, *interferer, *numTX, *rssi, *exclusive)
	if err != nil {
		glog.Exit(err)
	}
	analyzer, err := analysis.New(opts)
	if err != nil {
		glog.Exit(err)
	}
	setup, err := experiment.ParseFileName(csvFile)
	if err != nil {
		glog.V(1).Infof("no sweep setup in output name: %s\n", err)
	}

	// Exporter setup
	exporters, err := newExporters(ctx, *output, csvFile, csvFormat(*rssi, *ifLog != ""))
	if err != nil {
		glog.Exit(err)
	}
	exporter := &export.Multi{Exporters: exporters}

	// Run
	filters := []filter.Filterer{&filter.FilterMinPRR{Min: *minPRR}}
	if err := run(ctx, analyzer, exporter, filters, logFile, *ifLog, *identifier, setup); err != nil {
		glog.Exit(err)
	}
	glog.V(1).Infof("analyzed %q (run %s)\n", logFile, *identifier)
}

// analyzeLogs reads the whole sweep, and the interferer log if ifPath is set.
func analyzeLogs(analyzer *analysis.Analyzer, logFile, ifPath string) ([]experiment.Record, error) {
	rxLog, err := os.Open(logFile)
	if err != nil {
		return nil, fmt.Errorf("unable to open log %q: %s", logFile, err)
	}
	defer rxLog.Close()
	if ifPath == "" {
		return analyzer.Analyze(rxLog)
	}
	ifLog, err := os.Open(ifPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open interferer log %q: %s", ifPath, err)
	}
	defer ifLog.Close()
	return analyzer.AnalyzeDual(rxLog, ifLog)
}

// run analyzes logFile completely before any record reaches the exporter, so
// an aborted analysis leaves existing outputs untouched.
func run(ctx context.Context, analyzer *analysis.Analyzer, exporter export.Exporter, filters []filter.Filterer, logFile, ifPath, id string, setup experiment.Setup) error {
	recs, err := analyzeLogs(analyzer, logFile, ifPath)
	if err != nil {
		return fmt.Errorf("analysis of %q failed: %w", logFile, err)
	}

	raw := make(chan experiment.Record, len(recs))
	for _, rec := range recs {
		raw <- rec
	}
	close(raw)

	stamped := make(chan experiment.Record)
	go annotate(raw, stamped, id, filepath.Base(logFile), setup)
	kept := make(chan experiment.Record)
	go func() {
		defer close(kept)
		filter.Filter(stamped, kept, filters)
	}()

	err = exporter.Write(ctx, kept)
	// Unblock the pipeline when the exporter gave up early.
	for range kept {
	}
	return err
}
