package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/golang/glog"
)

const (
	defaultCommandTimeout = 2 * time.Second
	// waitDelay bounds how long a killed terminal's children may keep its pipes open.
	waitDelay = time.Second
)

// Shell reaches a node through a terminal subprocess, usually RIOT's
// "make term".
type Shell struct {
	Label string
	// Program and Args of the terminal.
	Program string
	Args    []string
	// Timeout bounds a single SendCommand.
	Timeout time.Duration
}

// NewMakeTerm returns a Shell running "make term" for a board on a serial port.
// dir is the application directory, empty for the current one.
func NewMakeTerm(label, port, board, dir string) *Shell {
	args := []string{"term", "PORT=" + port, "BOARD=" + board}
	if dir != "" {
		args = append(args, "-C", dir)
	}
	return &Shell{
		Label:   label,
		Program: "make",
		Args:    args,
	}
}

func (s *Shell) Name() string { return s.Label }

// SendCommand starts the terminal, writes cmd followed by a newline and waits
// for the terminal to exit. The terminal is killed when it doesn't exit
// within the timeout, in which case ErrTimeout is returned.
func (s *Shell) SendCommand(ctx context.Context, cmd string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, s.Program, s.Args...)
	c.Stdin = strings.NewReader(cmd + "\n")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	c.WaitDelay = waitDelay
	glog.V(2).Infof("sending %q to %s: %q\n", cmd, s.Label, c)
	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %q to %s", ErrTimeout, cmd, s.Label)
		}
		return fmt.Errorf("%q to %s: %w", cmd, s.Label, err)
	}
	return nil
}

// Lines starts the terminal and streams its standard output. The terminal is
// killed when ctx is done.
func (s *Shell) Lines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string, lineBuffer)
	errc := make(chan error, 1)

	c := exec.CommandContext(ctx, s.Program, s.Args...)
	c.WaitDelay = waitDelay
	out, err := c.StdoutPipe()
	if err != nil {
		close(lines)
		errc <- err
		close(errc)
		return lines, errc
	}
	// Start() executes command asynchronically.
	glog.V(1).Infof("capturing %s: %q\n", s.Label, c)
	if err := c.Start(); err != nil {
		close(lines)
		errc <- fmt.Errorf("unable to start %s: %w", s.Label, err)
		close(errc)
		return lines, errc
	}

	// Killing the terminal may leave its children holding stdout open, so the
	// pipe is closed as well to unblock the scanner.
	scanned := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			out.Close()
		case <-scanned:
		}
	}()
	go func() {
		defer close(errc)
		scanLines(ctx, out, lines)
		close(scanned)
		close(lines)
		err := c.Wait()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		errc <- err
	}()
	return lines, errc
}

func scanLines(ctx context.Context, r io.Reader, lines chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		glog.Warningf("error reading line: %s\n", err)
	}
}
