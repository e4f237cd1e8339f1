package export

import (
	"context"
	"errors"
	"sync"

	"github.com/tinstructor/interference/experiment"
)

type Exporter interface {
	Write(context.Context, <-chan experiment.Record) error
}

// Multi hands every record to all of its exporters.
type Multi struct {
	Exporters []Exporter
}

func (m *Multi) Write(ctx context.Context, records <-chan experiment.Record) error {
	chans := make([]chan experiment.Record, len(m.Exporters))
	errs := make([]error, len(m.Exporters))
	wg := sync.WaitGroup{}
	for i, e := range m.Exporters {
		chans[i] = make(chan experiment.Record, 1)
		wg.Add(1)
		go func(i int, e Exporter) {
			defer wg.Done()
			errs[i] = e.Write(ctx, chans[i])
			// Keep draining so a failed exporter doesn't block the others.
			for range chans[i] {
			}
		}(i, e)
	}

	for rec := range records {
		for _, c := range chans {
			c <- rec
		}
	}
	for _, c := range chans {
		close(c)
	}
	wg.Wait()

	return errors.Join(errs...)
}
