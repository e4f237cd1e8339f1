// Package timing computes SUN-OFDM frame airtimes and the timing offsets used
// to place an interfering frame relative to the frame under test.
package timing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnknownMCS is returned for an OFDM configuration index without a known data rate.
var ErrUnknownMCS = errors.New("unknown OFDM configuration")

const (
	// SymbolRate is the OFDM symbol rate in ksymbols/s.
	SymbolRate = 8 + 1.0/3.0
	TailBits   = 6
	// PHRSymbols is the length of the preamble and PHY header in symbols.
	PHRSymbols = 12
)

// uncodedBitsPerSymbol maps the node's PHY configuration index to the amount of
// data bits carried per OFDM symbol.
var uncodedBitsPerSymbol = map[int]int{
	2: 6,  // O4 MCS2
	3: 12, // O4 MCS3
	4: 6,  // O3 MCS1
	5: 12, // O3 MCS2
}

// PFHROverlapSymbols are the preamble/PHY header overlaps swept by the PFHR sweeps.
var PFHROverlapSymbols = []int{4, 6, 12}

// PHRDuration returns the airtime of the preamble and PHY header in µs.
func PHRDuration() float64 {
	return symbolsToMicros(PHRSymbols)
}

// Airtime returns the duration in µs of a frame with the given payload in bytes.
func Airtime(phy, payload int) (float64, error) {
	ubps, ok := uncodedBitsPerSymbol[phy]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownMCS, phy)
	}
	symbols := math.Ceil(float64(payload*8+TailBits)/float64(ubps)) + PHRSymbols
	return symbolsToMicros(symbols), nil
}

// MidPayloadOffset returns the offset in µs that centres the interfering frame
// on the payload of the frame under test.
func MidPayloadOffset(ifPHY, trxPHY, ifPayload, trxPayload int) (int, error) {
	ifDur, trxDur, err := durations(ifPHY, trxPHY, ifPayload, trxPayload)
	if err != nil {
		return 0, err
	}
	return int(math.RoundToEven((trxDur + PHRDuration() - ifDur) / 2)), nil
}

// PFHROffsets returns the offsets in µs for which the tail of the interfering
// frame overlaps each of PFHROverlapSymbols with the preamble and header of
// the frame under test.
func PFHROffsets(ifPHY, ifPayload int) ([]int, error) {
	ifDur, err := Airtime(ifPHY, ifPayload)
	if err != nil {
		return nil, err
	}
	offsets := make([]int, 0, len(PFHROverlapSymbols))
	for _, sym := range PFHROverlapSymbols {
		offsets = append(offsets, int(math.RoundToEven(symbolsToMicros(float64(sym))-ifDur)))
	}
	return offsets, nil
}

// PayloadOverlap returns, in percent rounded to one decimal, how much of the
// payload of the frame under test is covered by the interfering frame. With
// pfhr set it returns the coverage of the preamble and header at the given offset.
func PayloadOverlap(ifPHY, trxPHY, ifPayload, trxPayload, offset int, pfhr bool) (float64, error) {
	ifDur, trxDur, err := durations(ifPHY, trxPHY, ifPayload, trxPayload)
	if err != nil {
		return 0, err
	}
	var pct float64
	if pfhr {
		pct = (ifDur - math.Abs(float64(offset))) * 100 / PHRDuration()
	} else {
		pct = ifDur * 100 / (trxDur - PHRDuration())
	}
	return round1(pct), nil
}

// round1 rounds v to one decimal, ties to even on the exact binary value.
func round1(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	return r
}

func durations(ifPHY, trxPHY, ifPayload, trxPayload int) (float64, float64, error) {
	ifDur, err := Airtime(ifPHY, ifPayload)
	if err != nil {
		return 0, 0, err
	}
	trxDur, err := Airtime(trxPHY, trxPayload)
	if err != nil {
		return 0, 0, err
	}
	return ifDur, trxDur, nil
}

func symbolsToMicros(symbols float64) float64 {
	return symbols / SymbolRate * 1000
}
