package experiment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBudget is returned when a result is created with a non-positive
	// amount of transmissions.
	ErrInvalidBudget = errors.New("amount of transmissions can't be negative or zero")
	// ErrRxOutOfRange is returned when a reception count would leave [0, tx_count].
	// It means the log and the configured sweep are out of sync.
	ErrRxOutOfRange = errors.New("reception count out of range")
)

// Result accumulates the receptions observed for one experiment configuration
// while its log segment is being scanned.
type Result struct {
	txCount int
	rxCount int

	// Interferer side, only set for dual-sided accounting.
	ifRxCount int
	hasIF     bool

	rssiSum float64
	hasRSSI bool

	trxPHY string
	ifPHY  string
}

// NewResult creates a result for txCount transmissions between the given
// transmitter/receiver PHY and interferer PHY.
func NewResult(txCount int, trxPHY, ifPHY string) (*Result, error) {
	if txCount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBudget, txCount)
	}
	return &Result{
		txCount: txCount,
		trxPHY:  trxPHY,
		ifPHY:   ifPHY,
	}, nil
}

func (r *Result) TxCount() int   { return r.txCount }
func (r *Result) RxCount() int   { return r.rxCount }
func (r *Result) IFRxCount() int { return r.ifRxCount }
func (r *Result) TRXPHY() string { return r.trxPHY }
func (r *Result) IFPHY() string  { return r.ifPHY }
func (r *Result) RSSISum() float64 {
	return r.rssiSum
}

// SetRxCount replaces the reception count. The result is left untouched when
// amount is outside [0, tx_count].
func (r *Result) SetRxCount(amount int) error {
	if err := checkBounds(amount, r.txCount); err != nil {
		return err
	}
	r.rxCount = amount
	return nil
}

// SetIFRxCount replaces the interferer-side reception count, with the same
// bounds as SetRxCount.
func (r *Result) SetIFRxCount(amount int) error {
	if err := checkBounds(amount, r.txCount); err != nil {
		return fmt.Errorf("interferer: %w", err)
	}
	r.ifRxCount = amount
	r.hasIF = true
	return nil
}

// AddRSSI adds a per-packet signal strength reading to the running sum.
func (r *Result) AddRSSI(v float64) {
	r.rssiSum += v
	r.hasRSSI = true
}

func (r *Result) PacketSuccess() float64 {
	return packetSuccess(r.rxCount, r.txCount)
}

func (r *Result) PacketLoss() float64 {
	return 1.0 - r.PacketSuccess()
}

func (r *Result) IFPacketSuccess() float64 {
	return packetSuccess(r.ifRxCount, r.txCount)
}

func (r *Result) AverageRSSI() float64 {
	return averageRSSI(r.rssiSum, r.rxCount)
}

// Finalize freezes the result into a Record at the given experiment index.
func (r *Result) Finalize(index int) Record {
	return Record{
		Index:     index,
		TRXPHY:    r.trxPHY,
		IFPHY:     r.ifPHY,
		TXCount:   r.txCount,
		RXCount:   r.rxCount,
		IFRXCount: r.ifRxCount,
		RSSISum:   r.rssiSum,
		HasRSSI:   r.hasRSSI,
		HasIF:     r.hasIF,
	}
}

// Record is a finalized, read-only experiment result as handed to exporters.
type Record struct {
	// Metadata
	Identifier string `json:"identifier"`
	Source     string `json:"source"`
	Index      int    `json:"index"`
	Setup      Setup  `json:"setup"`

	// Configuration
	TRXPHY string `json:"trxPhy"`
	IFPHY  string `json:"ifPhy"`

	// Counters
	TXCount   int     `json:"txCount"`
	RXCount   int     `json:"rxCount"`
	IFRXCount int     `json:"ifRxCount"`
	RSSISum   float64 `json:"rssiSum"`
	HasRSSI   bool    `json:"hasRssi"`
	HasIF     bool    `json:"hasIf"`
}

func (r Record) PacketSuccess() float64 {
	return packetSuccess(r.RXCount, r.TXCount)
}

func (r Record) PacketLoss() float64 {
	return 1.0 - r.PacketSuccess()
}

func (r Record) IFPacketSuccess() float64 {
	return packetSuccess(r.IFRXCount, r.TXCount)
}

func (r Record) AverageRSSI() float64 {
	return averageRSSI(r.RSSISum, r.RXCount)
}

// Validate checks the counters of a record that did not come out of Finalize,
// e.g. one received over the network.
func (r Record) Validate() error {
	if r.TXCount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBudget, r.TXCount)
	}
	if err := checkBounds(r.RXCount, r.TXCount); err != nil {
		return err
	}
	if err := checkBounds(r.IFRXCount, r.TXCount); err != nil {
		return fmt.Errorf("interferer: %w", err)
	}
	return nil
}

func checkBounds(amount, txCount int) error {
	switch {
	case amount < 0:
		return fmt.Errorf("%w: can't process a negative amount of receptions (%d)", ErrRxOutOfRange, amount)
	case amount > txCount:
		return fmt.Errorf("%w: can't process an amount of receptions > transmissions (%d > %d)", ErrRxOutOfRange, amount, txCount)
	}
	return nil
}

func packetSuccess(rx, tx int) float64 {
	if rx == 0 || tx <= 0 {
		return 0.0
	}
	return float64(rx) / float64(tx)
}

func averageRSSI(sum float64, rx int) float64 {
	if rx == 0 {
		return 0.0
	}
	return sum / float64(rx)
}
