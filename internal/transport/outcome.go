package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/zabe-dev/smuggler/internal/target"
)

var (
	ErrConnect   = errors.New("connect failure")
	ErrTimeout   = errors.New("timed out")
	ErrTransport = errors.New("transport failure")
)

// Status classifies a single request attempt.
type Status int

const (
	StatusOK Status = iota
	StatusTimeout
	StatusRefused
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusRefused:
		return "REFUSED"
	default:
		return "ERROR"
	}
}

// Outcome is the result of one connect/send/receive cycle. Failures are
// values, never panics or returned errors.
type Outcome struct {
	Status     Status
	Elapsed    time.Duration
	StatusLine string // first response line, OK only
	Length     int    // response bytes read, OK only
	Err        error  // wraps ErrConnect, ErrTimeout or ErrTransport
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusOK:
		return fmt.Sprintf("OK %.2fs %q (%d bytes)", o.Elapsed.Seconds(), o.StatusLine, o.Length)
	case StatusTimeout:
		return fmt.Sprintf("TIMEOUT %.2fs", o.Elapsed.Seconds())
	default:
		return fmt.Sprintf("%s: %v", o.Status, o.Err)
	}
}

// Client sends payloads to one target, opening a fresh connection each time.
type Client struct {
	Dialer *Dialer
	Target target.Target
}

// NewClient binds d to t.
func NewClient(d *Dialer, t target.Target) *Client {
	return &Client{Dialer: d, Target: t}
}

// Do connects, sends payload, receives and closes. Elapsed covers send
// through receive.
func (c *Client) Do(ctx context.Context, payload []byte) Outcome {
	conn, err := c.Dialer.Dial(ctx, c.Target)
	if err != nil {
		return dialOutcome(err, c.Dialer.Timeout)
	}
	defer conn.Close()

	start := time.Now()
	if err := conn.Send(payload); err != nil {
		if isTimeout(err) {
			return Outcome{Status: StatusTimeout, Elapsed: time.Since(start), Err: fmt.Errorf("%w: send: %v", ErrTimeout, err)}
		}
		return Outcome{Status: StatusError, Err: fmt.Errorf("%w: send: %v", ErrTransport, err)}
	}
	resp, err := conn.Receive()
	elapsed := time.Since(start)
	if err != nil {
		return Outcome{Status: StatusError, Elapsed: elapsed, Err: fmt.Errorf("%w: receive: %v", ErrTransport, err)}
	}
	if resp == nil {
		return Outcome{Status: StatusTimeout, Elapsed: elapsed, Err: ErrTimeout}
	}

	line := resp
	if i := bytes.Index(resp, []byte("\r\n")); i >= 0 {
		line = resp[:i]
	}
	return Outcome{
		Status:     StatusOK,
		Elapsed:    elapsed,
		StatusLine: string(bytes.ToValidUTF8(line, nil)),
		Length:     len(resp),
	}
}

func dialOutcome(err error, timeout time.Duration) Outcome {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return Outcome{Status: StatusRefused, Err: fmt.Errorf("%w: %v", ErrConnect, err)}
	case isTimeout(err):
		return Outcome{Status: StatusTimeout, Elapsed: timeout, Err: fmt.Errorf("%w: connect: %v", ErrTimeout, err)}
	default:
		return Outcome{Status: StatusError, Err: fmt.Errorf("%w: %v", ErrConnect, err)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
