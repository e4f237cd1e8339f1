// Package sweep drives the nodes of a testbed through a sweep of payload sizes
// and PHY configurations and turns every captured receiver log into a CSV row.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"

	"github.com/tinstructor/interference/analysis"
	"github.com/tinstructor/interference/device"
	"github.com/tinstructor/interference/experiment"
	"github.com/tinstructor/interference/export"
	"github.com/tinstructor/interference/timing"
)

const (
	// headerBytes is what the MAC and the test application add to the payload
	// configured with numbytesub.
	headerBytes = 19

	// NoInterferer is the interferer label of experiments without an interfering node.
	NoInterferer = "None"

	logTimeFormat = "02-01-2006_15-04-05.000000"
)

// Nodes are the devices taking part in a sweep. Interferer is nil for
// attenuation sweeps.
type Nodes struct {
	TX         device.Commander
	RX         device.Node
	Timing     device.Commander
	Interferer device.Commander
}

type Options struct {
	Identifier string
	// PHYs of the transmitter and receiver, swept in order for every payload size.
	PHYs []experiment.PHY
	// Payloads are the transmitter payload sizes in bytes.
	Payloads []int
	DestAddr string
	NumTX    int

	// InterfererPHY and InterfererPayload configure the interferer. Both are
	// ignored without an interferer node.
	InterfererPHY     experiment.PHY
	InterfererPayload int
	SIR               int
	Attenuation       int
	// PFHR places the interferer over the preamble and header of the frame
	// under test, once per overlap in timing.PFHROverlapSymbols, instead of
	// centring it on the payload.
	PFHR bool

	// TXInterval is the time between two transmissions of the timing controller.
	TXInterval time.Duration
	// Settle is the pause between commands to the same node.
	Settle time.Duration
	// Grace is added to the expected duration of a capture.
	Grace time.Duration

	LogDir string
	CSVDir string
	// Exporter receives every record next to the CSV file. Optional.
	Exporter export.Exporter
}

// Sweep runs experiments one at a time.
type Sweep struct {
	nodes Nodes
	opts  *Options
	index int
}

func New(nodes Nodes, opts *Options) (*Sweep, error) {
	if nodes.TX == nil || nodes.RX == nil || nodes.Timing == nil {
		return nil, fmt.Errorf("%w: transmitter, receiver and timing controller are required", analysis.ErrConfig)
	}
	if nodes.Interferer != nil && opts.InterfererPayload <= headerBytes {
		return nil, fmt.Errorf("%w: interferer payload of %dB doesn't fit the %dB header", analysis.ErrConfig, opts.InterfererPayload, headerBytes)
	}
	if len(opts.PHYs) == 0 || len(opts.Payloads) == 0 {
		return nil, fmt.Errorf("%w: nothing to sweep", analysis.ErrConfig)
	}
	if opts.NumTX <= 0 {
		return nil, fmt.Errorf("%w: %w", analysis.ErrConfig, experiment.ErrInvalidBudget)
	}
	for _, p := range opts.Payloads {
		if p <= headerBytes {
			return nil, fmt.Errorf("%w: payload of %dB doesn't fit the %dB header", analysis.ErrConfig, p, headerBytes)
		}
	}
	return &Sweep{nodes: nodes, opts: opts}, nil
}

// CaptureDuration is how long the receiver is listened to per experiment.
func (s *Sweep) CaptureDuration() time.Duration {
	d := time.Duration(math.RoundToEven(float64(s.opts.NumTX)*s.opts.TXInterval.Seconds())) * time.Second
	return d + s.opts.Grace
}

// Run sweeps all payload sizes and, for each, all PHYs. It returns the
// records in sweep order.
func (s *Sweep) Run(ctx context.Context) ([]experiment.Record, error) {
	var records []experiment.Record
	for _, payload := range s.opts.Payloads {
		for _, phy := range s.opts.PHYs {
			setups, err := s.setups(payload, phy)
			if err != nil {
				return records, fmt.Errorf("experiment %d (%s, %dB): %w", s.index, phy.Label, payload, err)
			}
			for _, setup := range setups {
				rec, err := s.Experiment(ctx, phy, setup)
				if err != nil {
					return records, fmt.Errorf("experiment %d (%s, %dB): %w", s.index, phy.Label, payload, err)
				}
				records = append(records, rec)
			}
		}
	}
	return records, nil
}

// Experiment configures the nodes for one PHY and setup, captures the
// receiver log and analyzes it.
func (s *Sweep) Experiment(ctx context.Context, phy experiment.PHY, setup experiment.Setup) (experiment.Record, error) {
	if err := s.configure(ctx, setup.TRXPayload, phy, setup); err != nil {
		return experiment.Record{}, err
	}

	logPath, err := s.capture(ctx)
	if err != nil {
		return experiment.Record{}, err
	}
	if err := s.reset(ctx); err != nil {
		return experiment.Record{}, err
	}

	rec, err := s.analyze(ctx, logPath, phy, setup)
	if err != nil {
		return experiment.Record{}, err
	}
	s.index++
	return rec, nil
}

func (s *Sweep) ifLabel() string {
	if s.nodes.Interferer == nil {
		return NoInterferer
	}
	return s.opts.InterfererPHY.Label
}

// setups returns the setups to run for a payload size and PHY, in order.
func (s *Sweep) setups(payload int, phy experiment.PHY) ([]experiment.Setup, error) {
	if s.nodes.Interferer == nil {
		return []experiment.Setup{{
			Kind:        experiment.KindAttenuation,
			TRXPayload:  payload,
			Attenuation: s.opts.Attenuation,
		}}, nil
	}
	base := experiment.Setup{
		Kind:       experiment.KindInterference,
		IFPayload:  s.opts.InterfererPayload,
		TRXPayload: payload,
		SIR:        s.opts.SIR,
	}
	if !s.opts.PFHR {
		offset, err := timing.MidPayloadOffset(s.opts.InterfererPHY.MCS, phy.MCS, s.opts.InterfererPayload, payload)
		if err != nil {
			return nil, err
		}
		base.OffsetUS = offset
		return []experiment.Setup{base}, nil
	}

	offsets, err := timing.PFHROffsets(s.opts.InterfererPHY.MCS, s.opts.InterfererPayload)
	if err != nil {
		return nil, err
	}
	setups := make([]experiment.Setup, 0, len(offsets))
	for _, o := range offsets {
		setup := base
		setup.Prefix = experiment.PrefixPFHR
		setup.OffsetUS = o
		setups = append(setups, setup)
	}
	return setups, nil
}

// step is a command to a node, optionally followed by a settling pause.
type step struct {
	node   device.Commander
	cmd    string
	settle bool
}

func (s *Sweep) configure(ctx context.Context, payload int, phy experiment.PHY, setup experiment.Setup) error {
	steps := []step{
		{s.nodes.TX, fmt.Sprintf("numbytesub %d", payload-headerBytes), true},
		{s.nodes.TX, fmt.Sprintf("saddrsub %s", s.opts.DestAddr), true},
		{s.nodes.TX, fmt.Sprintf("physub %d", phy.Index), false},
		// Receiver and timing controller are separate nodes, no need to wait.
		{s.nodes.RX, fmt.Sprintf("physub %d", phy.Index), false},
	}
	if s.nodes.Interferer != nil {
		steps = append(steps,
			step{s.nodes.Interferer, fmt.Sprintf("numbytesub %d", s.opts.InterfererPayload-headerBytes), true},
			step{s.nodes.Interferer, fmt.Sprintf("physub %d", s.opts.InterfererPHY.Index), false},
			step{s.nodes.Timing, fmt.Sprintf("offset %d", setup.OffsetUS), true},
		)
	}
	steps = append(steps, step{s.nodes.Timing, fmt.Sprintf("numtx %d", s.opts.NumTX), true})

	for _, st := range steps {
		if err := send(ctx, st.node, st.cmd); err != nil {
			return err
		}
		if st.settle {
			if err := sleep(ctx, s.opts.Settle); err != nil {
				return err
			}
		}
	}
	return nil
}

// capture starts the experiment and records the receiver's output into a new log file.
func (s *Sweep) capture(ctx context.Context) (string, error) {
	if err := send(ctx, s.nodes.Timing, "start"); err != nil {
		return "", err
	}

	if err := export.EnsureDir(s.opts.LogDir); err != nil {
		return "", err
	}
	name := fmt.Sprintf("rx_log_%s.log", time.Now().Format(logTimeFormat))
	path := filepath.Join(s.opts.LogDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("unable to create log %q: %s", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "Created logfile %s\n", name); err != nil {
		return "", err
	}

	glog.V(1).Infof("capturing %s into %q for %s\n", s.nodes.RX.Name(), path, s.CaptureDuration())
	n, err := device.Capture(ctx, s.nodes.RX, s.CaptureDuration(), f)
	if err != nil {
		return "", fmt.Errorf("unable to capture %s: %s", s.nodes.RX.Name(), err)
	}
	glog.V(1).Infof("captured %d lines\n", n)
	return path, f.Close()
}

func (s *Sweep) reset(ctx context.Context) error {
	if err := send(ctx, s.nodes.Timing, "reboot"); err != nil {
		return err
	}
	if err := sleep(ctx, 2*s.opts.Settle); err != nil {
		return err
	}
	nodes := []device.Commander{s.nodes.TX, s.nodes.RX}
	if s.nodes.Interferer != nil {
		nodes = append(nodes, s.nodes.Interferer)
	}
	for _, n := range nodes {
		if err := send(ctx, n, "reboot"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweep) analyze(ctx context.Context, logPath string, phy experiment.PHY, setup experiment.Setup) (experiment.Record, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return experiment.Record{}, err
	}
	defer f.Close()

	rec, err := analysis.AnalyzeSegment(f, s.index, analysis.Options{
		TRXPHYs: []string{phy.Label},
		IFPHYs:  []string{s.ifLabel()},
		NumTX:   s.opts.NumTX,
	})
	if err != nil {
		return experiment.Record{}, fmt.Errorf("unable to analyze %q: %w", logPath, err)
	}
	rec.Identifier = s.opts.Identifier
	rec.Source = filepath.Base(logPath)
	rec.Setup = setup
	glog.Infof("%s: PRR %.2f\n", phy.Label, rec.PacketSuccess())

	exporters := []export.Exporter{&export.CSV{
		Path:   filepath.Join(s.opts.CSVDir, setup.FileName()),
		Append: true,
	}}
	if s.opts.Exporter != nil {
		exporters = append(exporters, s.opts.Exporter)
	}
	records := make(chan experiment.Record, 1)
	records <- rec
	close(records)
	if err := (&export.Multi{Exporters: exporters}).Write(ctx, records); err != nil {
		return experiment.Record{}, err
	}
	return rec, nil
}

// send delivers cmd to node. Terminals that don't exit on their own time out,
// which still means the command was written.
func send(ctx context.Context, node device.Commander, cmd string) error {
	err := node.SendCommand(ctx, cmd)
	if errors.Is(err, device.ErrTimeout) {
		glog.V(2).Infof("%s\n", err)
		return ctx.Err()
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
