package experiment

import (
	"errors"
	"testing"
)

func TestFileNameRoundTrip(t *testing.T) {
	tests := []struct {
		setup Setup
		name  string
	}{
		{
			setup: Setup{Kind: KindInterference, IFPayload: 21, TRXPayload: 120, OffsetUS: 3840, SIR: 0},
			name:  "IF_21B_TX_120B_OF_3840US_SIR_0DB.csv",
		},
		{
			setup: Setup{Kind: KindInterference, Prefix: "PP", IFPayload: 45, TRXPayload: 255, OffsetUS: -1440, SIR: -3},
			name:  "PP_IF_45B_TX_255B_OF_-1440US_SIR_-3DB.csv",
		},
		{
			setup: Setup{Kind: KindAttenuation, TRXPayload: 127, Attenuation: 39},
			name:  "TX_127B_AT_39DBM.csv",
		},
	}
	for _, tc := range tests {
		if got := tc.setup.FileName(); got != tc.name {
			t.Errorf("FileName() = %q, want %q", got, tc.name)
		}
		got, err := ParseFileName("/some/dir/" + tc.name)
		if err != nil {
			t.Errorf("ParseFileName(%q): %s", tc.name, err)
			continue
		}
		if got != tc.setup {
			t.Errorf("ParseFileName(%q) = %+v, want %+v", tc.name, got, tc.setup)
		}
	}
}

func TestParseFileNameRejects(t *testing.T) {
	for _, name := range []string{"results.csv", "IF_21B_TX_120B.csv", "IF_21B_TX_120B_OF_3840US_SIR_0DB.txt"} {
		if _, err := ParseFileName(name); !errors.Is(err, ErrBadFileName) {
			t.Errorf("ParseFileName(%q) = %v, want ErrBadFileName", name, err)
		}
	}
}

func TestRestrict(t *testing.T) {
	labels := Labels(DefaultPHYs)
	got, err := Restrict(labels, "SUN-OFDM 863-870MHz O4 MCS3")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "SUN-OFDM 863-870MHz O4 MCS3" {
		t.Errorf("Restrict() = %v", got)
	}
	if _, err := Restrict(labels, "SUN-OFDM O4 MCS3"); !errors.Is(err, ErrUnknownPHY) {
		t.Errorf("Restrict(unknown) = %v, want ErrUnknownPHY", err)
	}
	if p, err := Lookup(DefaultPHYs, "SUN-OFDM 863-870MHz O3 MCS1"); err != nil || p.Index != 4 || p.MCS != 4 {
		t.Errorf("Lookup() = %+v, %v", p, err)
	}
}
