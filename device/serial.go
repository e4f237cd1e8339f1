package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

const defaultBaudRate = 115200

// Serial reaches a node's shell directly on its serial port.
type Serial struct {
	Label    string
	Port     string
	BaudRate int
}

func (s *Serial) Name() string { return s.Label }

func (s *Serial) open() (serial.Port, error) {
	baud := s.BaudRate
	if baud <= 0 {
		baud = defaultBaudRate
	}
	port, err := serial.Open(s.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open serial port %q of %s: %w", s.Port, s.Label, err)
	}
	return port, nil
}

func (s *Serial) SendCommand(ctx context.Context, cmd string) error {
	port, err := s.open()
	if err != nil {
		return err
	}
	defer port.Close()

	done := make(chan error, 1)
	go func() {
		_, err := port.Write([]byte(cmd + "\n"))
		if err == nil {
			err = port.Drain()
		}
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%q to %s: %w", cmd, s.Label, err)
		}
		glog.V(2).Infof("sent %q to %s\n", cmd, s.Label)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %q to %s", ErrTimeout, cmd, s.Label)
	}
}

// Lines streams the lines the node prints until ctx is done. The port is
// closed to unblock the pending read.
func (s *Serial) Lines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string, lineBuffer)
	errc := make(chan error, 1)

	port, err := s.open()
	if err != nil {
		close(lines)
		errc <- err
		close(errc)
		return lines, errc
	}

	closeOnce := sync.OnceValue(port.Close)
	go func() {
		<-ctx.Done()
		closeOnce()
	}()
	go func() {
		defer close(errc)
		scanLines(ctx, port, lines)
		close(lines)
		closeOnce()
		errc <- ctx.Err()
	}()
	return lines, errc
}
