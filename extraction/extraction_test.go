package extraction

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tinstructor/interference/experiment"
	"github.com/tinstructor/interference/export"
)

var records = []experiment.Record{
	{Index: 0, TRXPHY: "SUN-OFDM 863-870MHz O4 MCS2", IFPHY: "SUN-OFDM 863-870MHz O4 MCS2", TXCount: 4, RXCount: 4, Setup: experiment.Setup{SIR: 3}},
	{Index: 1, TRXPHY: "SUN-OFDM 863-870MHz O4 MCS3", IFPHY: "SUN-OFDM 863-870MHz O4 MCS2", TXCount: 4, RXCount: 1, Setup: experiment.Setup{SIR: 0}},
	{Index: 2, TRXPHY: "SUN-OFDM 863-870MHz O4 MCS2", IFPHY: "SUN-OFDM 863-870MHz O3 MCS1", TXCount: 4, RXCount: 2, Setup: experiment.Setup{SIR: -3}},
}

func TestNewMatrix(t *testing.T) {
	m := NewMatrix("PRR", records, PRR)
	if len(m.Rows) != 2 || len(m.Cols) != 2 {
		t.Fatalf("matrix is %dx%d, want 2x2", len(m.Rows), len(m.Cols))
	}
	if m.Rows[0] != records[0].TRXPHY || m.Cols[1] != records[2].IFPHY {
		t.Errorf("unexpected order: rows %v cols %v", m.Rows, m.Cols)
	}
	if m.Values[0][0] != 1.0 || m.Values[1][0] != 0.25 || m.Values[0][1] != 0.5 {
		t.Errorf("unexpected values %v", m.Values)
	}
	if !math.IsNaN(m.Values[1][1]) {
		t.Errorf("missing cell = %f, want NaN", m.Values[1][1])
	}
}

func TestGetColor(t *testing.T) {
	if got := GetColor(0); got != colors[0] {
		t.Errorf("GetColor(0) = %v, want %v", got, colors[0])
	}
	if got := GetColor(1); got != colors[len(colors)-1] {
		t.Errorf("GetColor(1) = %v, want %v", got, colors[len(colors)-1])
	}
	if got := GetColor(-3); got != colors[0] {
		t.Errorf("GetColor(-3) = %v, want clamped %v", got, colors[0])
	}
	if got := GetColor(math.NaN()); got != missingColor {
		t.Errorf("GetColor(NaN) = %v, want %v", got, missingColor)
	}
	if got := GetColor(0.2); got != colors[1] {
		t.Errorf("GetColor(0.2) = %v, want stop %v", got, colors[1])
	}
}

func TestDrawHeatmap(t *testing.T) {
	m := NewMatrix("PRR", records, PRR)
	img := DrawHeatmap(m, &ImageOptions{CellSize: 50})
	b := img.Bounds()
	if b.Dx() < 100 || b.Dy() < 100+marginTop {
		t.Fatalf("image too small: %v", b)
	}

	// Sample the inside of the top left cell, clear of grid lines.
	marginLeft := textWidth("O4 MCS3") + 2*marginPad
	got := img.RGBAAt(marginLeft+5, marginTop+5)
	if got != GetColor(1.0) {
		t.Errorf("top left cell color = %v, want %v", got, GetColor(1.0))
	}
}

func TestDrawHeatmapEmptyScale(t *testing.T) {
	m := NewMatrix("PRR", records, PRR)
	marginLeft := textWidth("O4 MCS3") + 2*marginPad
	for _, opts := range []*ImageOptions{
		{CellSize: 50, Min: 0.5, Max: 0.5},
		{CellSize: 50, Min: 1, Max: 0},
	} {
		img := DrawHeatmap(m, opts)
		// Cells (0, 0) and (0, 1) hold 1.0 and 0.5.
		if got := img.RGBAAt(marginLeft+5, marginTop+5); got != GetColor(1.0) {
			t.Errorf("scale [%v, %v]: cell 1.0 color = %v, want %v", opts.Min, opts.Max, got, GetColor(1.0))
		}
		if got := img.RGBAAt(marginLeft+50+5, marginTop+5); got != GetColor(0.5) {
			t.Errorf("scale [%v, %v]: cell 0.5 color = %v, want %v", opts.Min, opts.Max, got, GetColor(0.5))
		}
	}
}

func TestNewSeries(t *testing.T) {
	series := NewSeries(records, SIR, PRR)
	if len(series) != 2 {
		t.Fatalf("got %d series, want 2", len(series))
	}
	if series[0].Name != "O4 MCS2" {
		t.Errorf("series name = %q", series[0].Name)
	}
	pts := series[0].Points
	if len(pts) != 2 || pts[0].X != -3 || pts[1].X != 3 {
		t.Errorf("points not sorted by x: %v", pts)
	}
	if _, err := NewPlot(series, &ChartOptions{Title: "PRR", YMin: -0.05, YMax: 1.05}); err != nil {
		t.Errorf("NewPlot() = %s", err)
	}
}

func TestOverlap(t *testing.T) {
	rec := experiment.Record{
		TRXPHY: "SUN-OFDM 863-870MHz O4 MCS3",
		IFPHY:  "SUN-OFDM 863-870MHz O4 MCS2",
		Setup:  experiment.Setup{IFPayload: 21, TRXPayload: 120, OffsetUS: 3840},
	}
	if got := Overlap(rec); got != 50.6 {
		t.Errorf("Overlap() = %v, want 50.6", got)
	}
	pfhr := rec
	pfhr.Setup.Prefix = experiment.PrefixPFHR
	pfhr.Setup.OffsetUS = -4200
	if got := Overlap(pfhr); got != 50 {
		t.Errorf("Overlap(PFHR) = %v, want 50", got)
	}

	fsk := rec
	fsk.IFPHY = "SUN-FSK 863-870MHz OM1"
	if got := Overlap(fsk); !math.IsNaN(got) {
		t.Errorf("Overlap(FSK) = %v, want NaN", got)
	}
	series := NewSeries([]experiment.Record{rec, fsk}, Overlap, PRR)
	if len(series) != 1 || len(series[0].Points) != 1 {
		t.Errorf("NewSeries() kept undefined points: %+v", series)
	}
}

func TestLoadCSV(t *testing.T) {
	in := "SUN-OFDM 863-870MHz O4 MCS2,SUN-OFDM 863-870MHz O3 MCS1,0.250,0.75\n" +
		"SUN-OFDM 863-870MHz O4 MCS3,SUN-OFDM 863-870MHz O3 MCS1,1.000,0.00\n"
	setup := experiment.Setup{Kind: experiment.KindInterference, SIR: 3}
	got, err := LoadCSV(strings.NewReader(in), "dual", setup)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].PacketSuccess() != 0.25 || got[0].IFPacketSuccess() != 0.75 || got[0].Setup != setup {
		t.Errorf("record 0 = %+v", got[0])
	}

	got, err = LoadCSV(strings.NewReader("A,X,0.50,-91.50\n"), "rssi", experiment.Setup{})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].AverageRSSI() != -91.5 {
		t.Errorf("average RSSI = %f, want -91.5", got[0].AverageRSSI())
	}

	if _, err := LoadCSV(strings.NewReader("A,X,1.5\n"), "prr", experiment.Setup{}); err == nil {
		t.Errorf("LoadCSV() accepted a PRR above 1")
	}
}

func TestQueryRecords(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	stored := make([]experiment.Record, len(records))
	copy(stored, records)
	for i := range stored {
		stored[i].Identifier = "run-1"
		stored[i].Source = "rx.log"
	}
	stored[2].Identifier = "run-2"

	c := make(chan experiment.Record, len(stored))
	for _, r := range stored {
		c <- r
	}
	close(c)
	exp := &export.SQL{DB: db, Dialect: export.DialectSQLite}
	if err := exp.Write(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	got, err := QueryRecords(db, &FilterOptions{Identifier: "run-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].RXCount != 1 || got[1].Setup.SIR != 0 || got[0].Setup.SIR != 3 {
		t.Errorf("QueryRecords() = %+v", got)
	}

	ids, err := Identifiers(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "run-1" || ids[1] != "run-2" {
		t.Errorf("Identifiers() = %v", ids)
	}
}
