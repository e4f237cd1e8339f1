package experiment

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// ErrBadFileName is returned when a CSV file name doesn't follow the sweep naming scheme.
var ErrBadFileName = errors.New("csv filename incorrectly formatted")

type Kind string

const (
	// KindInterference sweeps payload size, offset and SIR between a transmitter and an interferer.
	KindInterference Kind = "interference"
	// KindAttenuation sweeps the attenuation between a transmitter and a receiver.
	KindAttenuation Kind = "attenuation"
)

// PrefixPFHR marks sweeps where the interferer overlaps the preamble and PHY
// header of the frame under test rather than its payload.
const PrefixPFHR = "PFHR"

var (
	interferenceNameRE = regexp.MustCompile(`^(?:(?P<prefix>[A-Z]+)_)?IF_(?P<if>\d+)B_TX_(?P<tx>\d+)B_OF_(?P<offset>-?\d+)US_SIR_(?P<sir>-?\d+)DB\.csv$`)
	attenuationNameRE  = regexp.MustCompile(`^TX_(?P<tx>\d+)B_AT_(?P<at>-?\d+)DBM?\.csv$`)
)

// Setup holds the sweep coordinates of a segment that aren't part of the PHY pair.
type Setup struct {
	Kind   Kind   `json:"kind,omitempty"`
	Prefix string `json:"prefix,omitempty"`

	// Payload sizes in bytes.
	IFPayload  int `json:"ifPayload,omitempty"`
	TRXPayload int `json:"trxPayload,omitempty"`

	// OffsetUS is the start offset of the interferer relative to the transmitter in µs.
	OffsetUS int `json:"offsetUs,omitempty"`
	// SIR is the signal to interference ratio in dB.
	SIR int `json:"sir,omitempty"`
	// Attenuation between transmitter and receiver in dB.
	Attenuation int `json:"attenuation,omitempty"`
}

// FileName returns the CSV file name the sweeps use for this setup.
func (s Setup) FileName() string {
	if s.Kind == KindAttenuation {
		return fmt.Sprintf("TX_%dB_AT_%dDBM.csv", s.TRXPayload, s.Attenuation)
	}
	name := fmt.Sprintf("IF_%dB_TX_%dB_OF_%dUS_SIR_%dDB.csv", s.IFPayload, s.TRXPayload, s.OffsetUS, s.SIR)
	if s.Prefix != "" {
		name = s.Prefix + "_" + name
	}
	return name
}

// ParseFileName extracts a Setup from a path following the naming scheme of FileName.
func ParseFileName(path string) (Setup, error) {
	base := filepath.Base(path)
	if m := interferenceNameRE.FindStringSubmatch(base); m != nil {
		s := Setup{
			Kind:   KindInterference,
			Prefix: m[interferenceNameRE.SubexpIndex("prefix")],
		}
		var err error
		if s.IFPayload, err = strconv.Atoi(m[interferenceNameRE.SubexpIndex("if")]); err != nil {
			return Setup{}, fmt.Errorf("%w: %s", ErrBadFileName, err)
		}
		if s.TRXPayload, err = strconv.Atoi(m[interferenceNameRE.SubexpIndex("tx")]); err != nil {
			return Setup{}, fmt.Errorf("%w: %s", ErrBadFileName, err)
		}
		if s.OffsetUS, err = strconv.Atoi(m[interferenceNameRE.SubexpIndex("offset")]); err != nil {
			return Setup{}, fmt.Errorf("%w: %s", ErrBadFileName, err)
		}
		if s.SIR, err = strconv.Atoi(m[interferenceNameRE.SubexpIndex("sir")]); err != nil {
			return Setup{}, fmt.Errorf("%w: %s", ErrBadFileName, err)
		}
		return s, nil
	}
	if m := attenuationNameRE.FindStringSubmatch(base); m != nil {
		s := Setup{Kind: KindAttenuation}
		var err error
		if s.TRXPayload, err = strconv.Atoi(m[attenuationNameRE.SubexpIndex("tx")]); err != nil {
			return Setup{}, fmt.Errorf("%w: %s", ErrBadFileName, err)
		}
		if s.Attenuation, err = strconv.Atoi(m[attenuationNameRE.SubexpIndex("at")]); err != nil {
			return Setup{}, fmt.Errorf("%w: %s", ErrBadFileName, err)
		}
		return s, nil
	}
	return Setup{}, fmt.Errorf("%w: %q", ErrBadFileName, base)
}
