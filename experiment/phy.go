package experiment

import (
	"errors"
	"fmt"
)

// ErrUnknownPHY is returned for a PHY label that isn't part of the known configuration list.
var ErrUnknownPHY = errors.New("unknown PHY")

// PHY is a physical layer configuration of the sub-GHz interface under test.
type PHY struct {
	// Index is the configuration index the nodes expect in the "physub" command.
	Index int
	Label string
	// MCS selects the OFDM airtime parameters in package timing, 0 for FSK.
	MCS int
}

// DefaultPHYs lists the sub-GHz configurations flashed onto the nodes, in
// configuration index order.
var DefaultPHYs = []PHY{
	{Index: 0, Label: "SUN-FSK 863-870MHz OM1"},
	{Index: 1, Label: "SUN-FSK 863-870MHz OM2"},
	{Index: 2, Label: "SUN-OFDM 863-870MHz O4 MCS2", MCS: 2},
	{Index: 3, Label: "SUN-OFDM 863-870MHz O4 MCS3", MCS: 3},
	{Index: 4, Label: "SUN-OFDM 863-870MHz O3 MCS1", MCS: 4},
	{Index: 5, Label: "SUN-OFDM 863-870MHz O3 MCS2", MCS: 5},
}

// Labels returns the labels of phys in order.
func Labels(phys []PHY) []string {
	labels := make([]string, 0, len(phys))
	for _, p := range phys {
		labels = append(labels, p.Label)
	}
	return labels
}

// Lookup finds the PHY with the given label.
func Lookup(phys []PHY, label string) (PHY, error) {
	for _, p := range phys {
		if p.Label == label {
			return p, nil
		}
	}
	return PHY{}, fmt.Errorf("%w: PHY name %q incorrectly formatted", ErrUnknownPHY, label)
}

// Restrict collapses a label list to the single given label. The label must
// already be part of labels.
func Restrict(labels []string, label string) ([]string, error) {
	for _, l := range labels {
		if l == label {
			return []string{label}, nil
		}
	}
	return nil, fmt.Errorf("%w: PHY name %q incorrectly formatted", ErrUnknownPHY, label)
}
