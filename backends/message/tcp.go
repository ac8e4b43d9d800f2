package message

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/LabPy/lantz-core/errors"
)

// TCPTransport talks to an instrument listening on a TCP socket, the
// wire behind TCPIP SOCKET resources and most LAN instruments.
type TCPTransport struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewTCPTransport builds a transport for addr ("192.168.0.1:50000").
// timeout bounds reads and writes without an explicit context deadline.
func NewTCPTransport(addr string, timeout time.Duration) *TCPTransport {
	return &TCPTransport{addr: addr, timeout: timeout}
}

// Open dials the instrument.
func (t *TCPTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return errors.Wrapf(err, "connecting to %s", t.addr)
	}
	t.conn = conn
	return nil
}

// Close drops the connection.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *TCPTransport) connection() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, errors.ErrNotConnected
	}
	return t.conn, nil
}

// deadline picks the context deadline when one is set, the transport
// timeout otherwise.
func (t *TCPTransport) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if t.timeout > 0 {
		return time.Now().Add(t.timeout)
	}
	return time.Time{}
}

// Write sends p to the instrument.
func (t *TCPTransport) Write(ctx context.Context, p []byte) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(t.deadline(ctx)); err != nil {
		return errors.Wrap(err, "setting write deadline")
	}
	_, err = conn.Write(p)
	return err
}

// Read fills p with available bytes.
func (t *TCPTransport) Read(ctx context.Context, p []byte) (int, error) {
	conn, err := t.connection()
	if err != nil {
		return 0, err
	}
	if err := conn.SetReadDeadline(t.deadline(ctx)); err != nil {
		return 0, errors.Wrap(err, "setting read deadline")
	}
	return conn.Read(p)
}
