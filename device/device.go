// Package device drives the experiment nodes: it sends shell commands to them
// and captures the lines they print.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"
)

const (
	// BoundaryLine terminates every captured experiment log.
	BoundaryLine = "PHY"

	lineBuffer = 1024
)

// ErrTimeout is returned when a node didn't take a command in time.
var ErrTimeout = errors.New("device command timed out")

// Commander sends a single shell command to a node.
type Commander interface {
	SendCommand(ctx context.Context, cmd string) error
}

// LineSource streams the output of a node line by line. The line channel is
// closed when the node's output ends; the error channel then yields at most
// one error and is closed as well.
type LineSource interface {
	Lines(ctx context.Context) (<-chan string, <-chan error)
}

// Node is a node that takes commands and prints output.
type Node interface {
	Commander
	LineSource
	Name() string
}

// Capture copies the lines of src to w until the deadline passes or src ends,
// then terminates the log with a BoundaryLine. It returns the number of lines
// copied.
func Capture(ctx context.Context, src LineSource, d time.Duration, w io.Writer) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	lines, errc := src.Lines(ctx)
	count := 0
loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				glog.V(1).Info("capture source ended before deadline")
				break loop
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return count, err
			}
			count++
		case <-ctx.Done():
			break loop
		}
	}
	cancel()

	// The producer exits on its own once the context is done.
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		glog.Warningf("capture source ended with error: %s\n", err)
	}

	if _, err := fmt.Fprintln(w, BoundaryLine); err != nil {
		return count, err
	}
	return count, nil
}
