package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/tinstructor/interference/collection/sweep"
	"github.com/tinstructor/interference/device"
	"github.com/tinstructor/interference/experiment"
	"github.com/tinstructor/interference/export"
)

// Flags
var (
	identifier = flag.String("id", "", "unique identifier of this sweep (defaults to a random UUID)")
	phys       = flag.String("phys", "SUN-OFDM 863-870MHz O4 MCS2,SUN-OFDM 863-870MHz O4 MCS3,SUN-OFDM 863-870MHz O3 MCS1,SUN-OFDM 863-870MHz O3 MCS2", "comma separated transmitter/receiver PHY labels to sweep")
	payloads   = flag.String("payloads", "25,50,75,100,125", "comma separated transmitter payload sizes in bytes")
	destAddr   = flag.String("destAddr", "22:68:31:23:9D:F1:96:37", "link layer address of the receiver")
	numTX      = flag.Int("numtx", 200, "amount of packets transmitted per experiment")
	txInterval = flag.Duration("txInterval", 500*time.Millisecond, "time between two transmissions")
	settle     = flag.Duration("settle", time.Second, "pause between two commands to the same node")
	grace      = flag.Duration("grace", 5*time.Second, "extra capture time per experiment")
	logDir     = flag.String("logDir", ".", "directory to store receiver logs in")
	csvDir     = flag.String("csvDir", ".", "directory to store result CSV files in")

	attenuation = flag.Int("attenuation", 0, "attenuation between transmitter and receiver in dB")
	sir         = flag.Int("sir", 0, "signal to interference ratio in dB")
	ifPHY       = flag.String("ifPHY", "SUN-OFDM 863-870MHz O4 MCS2", "PHY label of the interferer")
	ifPayload   = flag.Int("ifPayload", 21, "payload size of the interferer in bytes")
	pfhr        = flag.Bool("pfhr", false, "overlap the interferer with the preamble and PHY header instead of the payload")

	// Nodes
	board       = flag.String("board", "openmote-b", "RIOT board of the transmitter, receiver and interferer")
	txPort      = flag.String("txPort", "/dev/ttyUSB3", "serial port of the transmitter")
	rxPort      = flag.String("rxPort", "/dev/ttyUSB1", "serial port of the receiver")
	ifPort      = flag.String("ifPort", "", "serial port of the interferer, empty for an attenuation sweep")
	timingPort  = flag.String("timingPort", "/dev/ttyUSB6", "serial port of the timing controller")
	timingBoard = flag.String("timingBoard", "remote-revb", "RIOT board of the timing controller")
	timingDir   = flag.String("timingDir", "", "RIOT application directory of the timing controller")
	direct      = flag.Bool("direct", false, "talk to the serial ports directly instead of through make term")
	baudRate    = flag.Int("baudRate", 115200, "baud rate of the serial ports when talking to them directly")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "", "File path of a sqlite DB file to store records in as well.")
)

type nodeFactory func(label, port, board, dir string) device.Node

func makeTerm(label, port, board, dir string) device.Node {
	return device.NewMakeTerm(label, port, board, dir)
}

func directSerial(label, port, _, _ string) device.Node {
	return &device.Serial{Label: label, Port: port, BaudRate: *baudRate}
}

func parsePayloads(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid payload size %q: %s", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parsePHYs(s string) ([]experiment.PHY, error) {
	var out []experiment.PHY
	for _, label := range strings.Split(s, ",") {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		p, err := experiment.Lookup(experiment.DefaultPHYs, label)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	if *identifier == "" {
		*identifier = uuid.NewString()
	}

	trxPHYs, err := parsePHYs(*phys)
	if err != nil {
		glog.Exit(err)
	}
	sizes, err := parsePayloads(*payloads)
	if err != nil {
		glog.Exit(err)
	}
	opts := &sweep.Options{
		Identifier:        *identifier,
		PHYs:              trxPHYs,
		Payloads:          sizes,
		DestAddr:          *destAddr,
		NumTX:             *numTX,
		InterfererPayload: *ifPayload,
		SIR:               *sir,
		Attenuation:       *attenuation,
		PFHR:              *pfhr,
		TXInterval:        *txInterval,
		Settle:            *settle,
		Grace:             *grace,
		LogDir:            *logDir,
		CSVDir:            *csvDir,
	}

	// Node setup
	newNode := nodeFactory(makeTerm)
	if *direct {
		newNode = directSerial
	}
	nodes := sweep.Nodes{
		TX:     newNode("tx", *txPort, *board, ""),
		RX:     newNode("rx", *rxPort, *board, ""),
		Timing: newNode("timing", *timingPort, *timingBoard, *timingDir),
	}
	if *ifPort != "" {
		if opts.InterfererPHY, err = experiment.Lookup(experiment.DefaultPHYs, *ifPHY); err != nil {
			glog.Exit(err)
		}
		nodes.Interferer = newNode("if", *ifPort, *board, "")
	}

	// Exporter setup
	if *sqliteFile != "" {
		s, err := export.OpenSQLite(*sqliteFile)
		if err != nil {
			glog.Exit(err)
		}
		defer s.DB.Close()
		opts.Exporter = s
	}

	sw, err := sweep.New(nodes, opts)
	if err != nil {
		glog.Exit(err)
	}

	// Run
	glog.Infof("starting sweep %s over %d payload sizes and %d PHYs\n", *identifier, len(sizes), len(trxPHYs))
	records, err := sw.Run(ctx)
	if err != nil {
		glog.Exitf("sweep %s aborted after %d experiments: %s", *identifier, len(records), err)
	}
	glog.Infof("sweep %s finished %d experiments\n", *identifier, len(records))
}
