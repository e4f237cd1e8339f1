package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinstructor/interference/analysis"
	"github.com/tinstructor/interference/device"
	"github.com/tinstructor/interference/experiment"
	"github.com/tinstructor/interference/timing"
)

// journal records the commands of all fake nodes in order.
type journal struct {
	mu   sync.Mutex
	cmds []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cmds = append(j.cmds, s)
}

type fakeNode struct {
	name    string
	j       *journal
	timeout bool
	// output is what the node prints when captured.
	output []string
}

func (f *fakeNode) Name() string { return f.name }

func (f *fakeNode) SendCommand(ctx context.Context, cmd string) error {
	f.j.add(f.name + ": " + cmd)
	if f.timeout {
		return device.ErrTimeout
	}
	return nil
}

func (f *fakeNode) Lines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string, len(f.output))
	errc := make(chan error, 1)
	for _, l := range f.output {
		lines <- l
	}
	close(lines)
	close(errc)
	return lines, errc
}

func packets(n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		out = append(out, "PKT - received")
	}
	return out
}

func testOptions(t *testing.T) *Options {
	dir := t.TempDir()
	return &Options{
		Identifier: "run",
		PHYs:       experiment.DefaultPHYs[2:4],
		Payloads:   []int{25, 50},
		DestAddr:   "22:68:31:23:9D:F1:96:37",
		NumTX:      4,
		Grace:      5 * time.Second,
		LogDir:     filepath.Join(dir, "logs"),
		CSVDir:     filepath.Join(dir, "csv"),
	}
}

func TestAttenuationSweep(t *testing.T) {
	j := &journal{}
	nodes := Nodes{
		TX:     &fakeNode{name: "tx", j: j, timeout: true},
		RX:     &fakeNode{name: "rx", j: j, output: packets(3)},
		Timing: &fakeNode{name: "timing", j: j},
	}
	opts := testOptions(t)
	s, err := New(nodes, opts)
	if err != nil {
		t.Fatal(err)
	}
	records, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	for i, rec := range records {
		if rec.Index != i || rec.PacketSuccess() != 0.75 || rec.IFPHY != NoInterferer || rec.Identifier != "run" {
			t.Errorf("record %d = %+v", i, rec)
		}
	}
	if records[1].TRXPHY != experiment.DefaultPHYs[3].Label || records[2].Setup.TRXPayload != 50 {
		t.Errorf("records not in sweep order: %+v", records)
	}

	want := []string{
		"tx: numbytesub 6",
		"tx: saddrsub 22:68:31:23:9D:F1:96:37",
		"tx: physub 2",
		"rx: physub 2",
		"timing: numtx 4",
		"timing: start",
		"timing: reboot",
		"tx: reboot",
		"rx: reboot",
	}
	for i, w := range want {
		if j.cmds[i] != w {
			t.Errorf("command %d = %q, want %q", i, j.cmds[i], w)
		}
	}

	csv, err := os.ReadFile(filepath.Join(opts.CSVDir, "TX_25B_AT_0DBM.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if rows := strings.Count(string(csv), "\n"); rows != 2 {
		t.Errorf("TX_25B_AT_0DBM.csv has %d rows, want 2:\n%s", rows, csv)
	}
	logs, err := os.ReadDir(opts.LogDir)
	if err != nil || len(logs) == 0 {
		t.Errorf("no logs captured: %v", err)
	}
}

func TestInterferenceSweep(t *testing.T) {
	j := &journal{}
	nodes := Nodes{
		TX:         &fakeNode{name: "tx", j: j},
		RX:         &fakeNode{name: "rx", j: j, output: packets(4)},
		Timing:     &fakeNode{name: "timing", j: j},
		Interferer: &fakeNode{name: "if", j: j},
	}
	opts := testOptions(t)
	opts.PHYs = experiment.DefaultPHYs[2:3]
	opts.Payloads = []int{120}
	opts.InterfererPHY = experiment.DefaultPHYs[2]
	opts.InterfererPayload = 21
	s, err := New(nodes, opts)
	if err != nil {
		t.Fatal(err)
	}
	records, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rec := records[0]
	if rec.IFPHY != experiment.DefaultPHYs[2].Label || rec.Setup.Kind != experiment.KindInterference || rec.PacketSuccess() != 1 {
		t.Errorf("record = %+v", rec)
	}
	found := false
	for _, c := range j.cmds {
		if strings.HasPrefix(c, "timing: offset ") {
			found = true
		}
	}
	if !found {
		t.Errorf("no offset sent to the timing controller: %v", j.cmds)
	}
	if _, err := os.Stat(filepath.Join(opts.CSVDir, rec.Setup.FileName())); err != nil {
		t.Errorf("csv missing: %s", err)
	}
}

func TestNewRejects(t *testing.T) {
	j := &journal{}
	nodes := Nodes{
		TX:     &fakeNode{name: "tx", j: j},
		RX:     &fakeNode{name: "rx", j: j},
		Timing: &fakeNode{name: "timing", j: j},
	}
	opts := testOptions(t)
	opts.NumTX = 0
	if _, err := New(nodes, opts); !errors.Is(err, experiment.ErrInvalidBudget) {
		t.Errorf("zero budget: got %v", err)
	}
	opts = testOptions(t)
	opts.Payloads = []int{10}
	if _, err := New(nodes, opts); !errors.Is(err, analysis.ErrConfig) {
		t.Errorf("tiny payload: got %v", err)
	}
	if _, err := New(Nodes{TX: nodes.TX}, testOptions(t)); !errors.Is(err, analysis.ErrConfig) {
		t.Errorf("missing nodes: got %v", err)
	}
}

func TestCaptureDuration(t *testing.T) {
	s := &Sweep{opts: &Options{NumTX: 200, TXInterval: 500 * time.Millisecond, Grace: 5 * time.Second}}
	if got := s.CaptureDuration(); got != 105*time.Second {
		t.Errorf("CaptureDuration() = %s, want 1m45s", got)
	}
}

func TestPFHRSweep(t *testing.T) {
	j := &journal{}
	nodes := Nodes{
		TX:         &fakeNode{name: "tx", j: j},
		RX:         &fakeNode{name: "rx", j: j, output: packets(2)},
		Timing:     &fakeNode{name: "timing", j: j},
		Interferer: &fakeNode{name: "if", j: j},
	}
	opts := testOptions(t)
	opts.PHYs = experiment.DefaultPHYs[2:3]
	opts.Payloads = []int{120}
	opts.InterfererPHY = experiment.DefaultPHYs[2]
	opts.InterfererPayload = 21
	opts.PFHR = true
	s, err := New(nodes, opts)
	if err != nil {
		t.Fatal(err)
	}
	records, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	offsets, err := timing.PFHROffsets(opts.InterfererPHY.MCS, opts.InterfererPayload)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != len(offsets) {
		t.Fatalf("got %d records, want one per overlap (%d)", len(records), len(offsets))
	}
	for i, rec := range records {
		if rec.Setup.Prefix != experiment.PrefixPFHR || rec.Setup.OffsetUS != offsets[i] || rec.Index != i {
			t.Errorf("record %d = %+v", i, rec)
		}
		name := rec.Setup.FileName()
		if !strings.HasPrefix(name, "PFHR_") {
			t.Errorf("file name %q lacks the PFHR prefix", name)
		}
		if _, err := os.Stat(filepath.Join(opts.CSVDir, name)); err != nil {
			t.Errorf("csv missing: %s", err)
		}
	}
}
