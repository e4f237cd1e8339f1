package filter

import "github.com/tinstructor/interference/experiment"

type Filterer interface {
	ShouldIgnore(*experiment.Record) bool
}

// Filter forwards every record of input that no filter ignores. output isn't closed.
func Filter(input <-chan experiment.Record, output chan<- experiment.Record, filters []Filterer) error {
	for r := range input {
		if Ignored(&r, filters) {
			continue
		}
		output <- r
	}
	return nil
}

// Apply returns the records no filter ignores, preserving order.
func Apply(records []experiment.Record, filters []Filterer) []experiment.Record {
	var kept []experiment.Record
	for i := range records {
		if Ignored(&records[i], filters) {
			continue
		}
		kept = append(kept, records[i])
	}
	return kept
}

func Ignored(r *experiment.Record, filters []Filterer) bool {
	for _, f := range filters {
		if f.ShouldIgnore(r) {
			return true
		}
	}
	return false
}

// FilterPHY keeps records whose PHYs are among the given labels. An empty list
// keeps every PHY.
type FilterPHY struct {
	TRX []string
	IF  []string
}

func (f *FilterPHY) ShouldIgnore(r *experiment.Record) bool {
	return !contains(f.TRX, r.TRXPHY) || !contains(f.IF, r.IFPHY)
}

// FilterMinPRR drops records whose packet reception ratio is below Min.
type FilterMinPRR struct {
	Min float64
}

func (f *FilterMinPRR) ShouldIgnore(r *experiment.Record) bool {
	return r.PacketSuccess() < f.Min
}

func contains(labels []string, label string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
