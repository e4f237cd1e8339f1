package filter

import (
	"testing"

	"github.com/tinstructor/interference/experiment"
)

func TestFilter(t *testing.T) {
	records := []experiment.Record{
		{Index: 0, TRXPHY: "A", IFPHY: "X", TXCount: 100, RXCount: 90},
		{Index: 1, TRXPHY: "B", IFPHY: "X", TXCount: 100, RXCount: 2},
		{Index: 2, TRXPHY: "A", IFPHY: "Y", TXCount: 100, RXCount: 50},
	}
	tests := []struct {
		name    string
		filters []Filterer
		want    []int
	}{
		{name: "none", want: []int{0, 1, 2}},
		{name: "trx", filters: []Filterer{&FilterPHY{TRX: []string{"A"}}}, want: []int{0, 2}},
		{name: "if", filters: []Filterer{&FilterPHY{IF: []string{"X"}}}, want: []int{0, 1}},
		{name: "prr", filters: []Filterer{&FilterMinPRR{Min: 0.05}}, want: []int{0, 2}},
		{name: "both", filters: []Filterer{&FilterMinPRR{Min: 0.05}, &FilterPHY{IF: []string{"X"}}}, want: []int{0}},
	}
	for _, tc := range tests {
		in := make(chan experiment.Record, len(records))
		out := make(chan experiment.Record, len(records))
		for _, r := range records {
			in <- r
		}
		close(in)
		if err := Filter(in, out, tc.filters); err != nil {
			t.Fatal(err)
		}
		close(out)
		var got []int
		for r := range out {
			got = append(got, r.Index)
		}
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
				break
			}
		}
		if applied := Apply(records, tc.filters); len(applied) != len(tc.want) {
			t.Errorf("%s: Apply() kept %d records, want %d", tc.name, len(applied), len(tc.want))
		}
	}
}
