package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/tinstructor/interference/experiment"
	"github.com/tinstructor/interference/export"
	"github.com/tinstructor/interference/extraction"
)

var (
	listen    = flag.String("listen", ":8443", "")
	certFile  = flag.String("certFile", "", "Path of the file containing the certificate (including the chained intermediates and root) for the TLS connection.")
	keyFile   = flag.String("keyFile", "", "Path of the file containing the key for the TLS connection.")
	output    = flag.String("output", "", "Export mechanism to use (one of: csv, sqlite, mysql)")
	csvFile   = flag.String("csvFile", "/tmp/interference.csv", "File path of the CSV file to append rows to.")
	csvFormat = flag.String("csvFormat", "prr", "Columns of the CSV output (one of: prr, rssi, dual).")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "/tmp/interference", "File path of the sqlite DB file to use.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "interference", "Name of the DB to use.")
)

const (
	collectEndpoint = "/interference/v1/collect"
	resultsEndpoint = "/interference/v1/results"
	recordBuffer    = 1000
)

type InterferenceServer struct {
	records chan experiment.Record
	// store answers result queries, nil when records aren't kept in a DB.
	store *export.SQL
}

func (s *InterferenceServer) collectHandler(c *gin.Context) {
	records := []experiment.Record{}
	if err := c.ShouldBindJSON(&records); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("record %d: %s", i, err)})
			return
		}
	}
	for _, rec := range records {
		select {
		case s.records <- rec:
		case <-c.Request.Context().Done():
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "client went away"})
			return
		}
	}
	c.JSON(http.StatusOK, export.CollectResponse{Status: "ok", RecordCount: len(records)})
}

func (s *InterferenceServer) resultsHandler(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "results are only available with a DB output"})
		return
	}
	records, err := extraction.QueryRecords(s.store.DB, &extraction.FilterOptions{
		Identifier: c.Query("identifier"),
		Source:     c.Query("source"),
	})
	if err != nil {
		glog.Warningf("unable to query records: %s\n", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []experiment.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *InterferenceServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST(collectEndpoint, s.collectHandler)
	r.GET(resultsEndpoint, s.resultsHandler)
	return r
}

func newExporter(ctx context.Context, output string) (export.Exporter, *export.SQL, error) {
	switch strings.ToLower(output) {
	case "csv":
		format, err := export.ParseFormat(*csvFormat)
		if err != nil {
			return nil, nil, err
		}
		return &export.CSV{Path: *csvFile, Append: true, Format: format}, nil, nil
	case "sqlite":
		s, err := export.OpenSQLite(*sqliteFile)
		if err != nil {
			return nil, nil, err
		}
		return s, s, s.CreateTableIfNotExists(ctx)
	case "mysql":
		s, err := export.OpenMySQL(&export.MySQLOptions{
			Server:       *mysqlServer,
			User:         *mysqlUser,
			PasswordFile: *mysqlPasswordFile,
			DBName:       *mysqlDBName,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, s.CreateTableIfNotExists(ctx)
	}
	return nil, nil, fmt.Errorf("%q is not a supported export method, pick one of: csv, sqlite, mysql", output)
}

func main() {
	ctx := context.Background()
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	// Exporter setup
	exporter, store, err := newExporter(ctx, *output)
	if err != nil {
		glog.Exit(err)
	}

	// Export records.
	records := make(chan experiment.Record, recordBuffer)
	go func() {
		if err := exporter.Write(ctx, records); err != nil {
			glog.Fatal(err)
		}
	}()

	// Configure and run webserver.
	gin.SetMode(gin.ReleaseMode)
	s := &InterferenceServer{
		records: records,
		store:   store,
	}
	srv := &http.Server{
		Addr:    *listen,
		Handler: s.Router(),
	}
	if *certFile != "" || *keyFile != "" {
		glog.Fatal(srv.ListenAndServeTLS(*certFile, *keyFile))
	} else {
		glog.Infoln("Resorting to serving HTTP because there was no certificate and key defined.")
		glog.Fatal(srv.ListenAndServe())
	}
}
