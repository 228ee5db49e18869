// Package transport sends raw HTTP/1.1 bytes over TCP or TLS and reports
// how long the peer took to answer.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/zabe-dev/smuggler/internal/target"
)

const (
	// ReadBufferSize is the per-read buffer used by Receive.
	ReadBufferSize = 8192

	// settleDelay is slept after a short read before returning.
	settleDelay = 50 * time.Millisecond
)

// Dialer opens connections to targets. The zero value dials directly with
// no timeout and verifies TLS certificates.
type Dialer struct {
	Timeout            time.Duration
	Proxy              *url.URL // socks5:// or http:// proxy, nil for direct
	InsecureSkipVerify bool     // accept any TLS certificate
}

// Conn is one raw connection to a target. A Conn is used by a single
// goroutine for one request.
type Conn struct {
	raw     net.Conn
	timeout time.Duration

	closeOnce sync.Once
}

// Dial connects to t, tunneling through the proxy and wrapping in TLS as
// configured.
func (d *Dialer) Dial(ctx context.Context, t target.Target) (*Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	raw, err := d.dialTCP(ctx, t.Addr())
	if err != nil {
		return nil, err
	}

	if t.TLS {
		tc := tls.Client(raw, &tls.Config{
			ServerName:         t.Host,
			InsecureSkipVerify: d.InsecureSkipVerify,
			NextProtos:         []string{"http/1.1"},
		})
		if err := tc.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("tls handshake with %s: %w", t.Addr(), err)
		}
		raw = tc
	}

	return &Conn{raw: raw, timeout: d.Timeout}, nil
}

func (d *Dialer) dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	if d.Proxy == nil {
		var nd net.Dialer
		return nd.DialContext(ctx, "tcp", addr)
	}
	switch d.Proxy.Scheme {
	case "socks5", "socks5h":
		return dialSOCKS(ctx, d.Proxy, addr)
	case "http":
		return dialConnect(ctx, d.Proxy, addr)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", d.Proxy.Scheme)
	}
}

// Send writes the whole payload or fails.
func (c *Conn) Send(p []byte) error {
	if c.timeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	for len(p) > 0 {
		n, err := c.raw.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Receive reads until the timeout elapses, the peer closes, or a read
// returns less than a full buffer (then waits settleDelay and stops).
// It returns nil when nothing arrived. Large responses may be cut short;
// only the status line and length are used.
func (c *Conn) Receive() ([]byte, error) {
	var (
		data     []byte
		buf      = make([]byte, ReadBufferSize)
		deadline = time.Now().Add(c.timeout)
	)
	for c.timeout <= 0 || time.Now().Before(deadline) {
		if c.timeout > 0 {
			_ = c.raw.SetReadDeadline(deadline)
		}
		n, err := c.raw.Read(buf)
		data = append(data, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) || len(data) > 0 {
				break
			}
			return nil, err
		}
		if n < ReadBufferSize {
			time.Sleep(settleDelay)
			break
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// Close releases the socket. It is safe to call more than once.
func (c *Conn) Close() {
	if c == nil || c.raw == nil {
		return
	}
	c.closeOnce.Do(func() { _ = c.raw.Close() })
}
