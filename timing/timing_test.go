package timing

import (
	"errors"
	"math"
	"testing"
)

func TestAirtime(t *testing.T) {
	tests := []struct {
		phy, payload int
		want         float64
	}{
		{phy: 2, payload: 21, want: 4920},
		{phy: 3, payload: 120, want: 11160},
		{phy: 4, payload: 0, want: 1440 + 120},
	}
	for _, tc := range tests {
		got, err := Airtime(tc.phy, tc.payload)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("Airtime(%d, %d) = %f, want %f", tc.phy, tc.payload, got, tc.want)
		}
	}
	if _, err := Airtime(0, 10); !errors.Is(err, ErrUnknownMCS) {
		t.Errorf("Airtime(0) = %v, want ErrUnknownMCS", err)
	}
}

func TestMidPayloadOffset(t *testing.T) {
	got, err := MidPayloadOffset(2, 3, 21, 120)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3840 {
		t.Errorf("MidPayloadOffset() = %d, want 3840", got)
	}
}

func TestPFHROffsets(t *testing.T) {
	got, err := PFHROffsets(2, 21)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{-4440, -4200, -3480}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PFHROffsets()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPayloadOverlap(t *testing.T) {
	got, err := PayloadOverlap(2, 3, 21, 120, 3840, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != 50.6 {
		t.Errorf("PayloadOverlap() = %f, want 50.6", got)
	}
	got, err = PayloadOverlap(2, 3, 21, 120, -4200, true)
	if err != nil {
		t.Fatal(err)
	}
	// (4920 - 4200) / 1440
	if got != 50.0 {
		t.Errorf("PayloadOverlap(pfhr) = %f, want 50", got)
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.25, 0.2},
		{0.35, 0.3},
		{0.45, 0.5},
		{50.617, 50.6},
		{-2.25, -2.2},
	}
	for _, tc := range tests {
		if got := round1(tc.in); got != tc.want {
			t.Errorf("round1(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
