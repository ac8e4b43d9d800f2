package message

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LabPy/lantz-core/errors"
)

// WebSocketTransport talks to an instrument, or an instrument gateway,
// exposing its command channel over a websocket. Each websocket message
// carries raw command bytes.
type WebSocketTransport struct {
	url     string
	timeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending []byte
}

// NewWebSocketTransport builds a transport for url ("ws://host:port/io").
func NewWebSocketTransport(url string, timeout time.Duration) *WebSocketTransport {
	return &WebSocketTransport{url: url, timeout: timeout}
}

// Open dials the websocket endpoint.
func (t *WebSocketTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return errors.Wrapf(err, "dialing %s", t.url)
	}
	t.conn = conn
	return nil
}

// Close drops the connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.pending = nil
	return err
}

func (t *WebSocketTransport) connection() (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, errors.ErrNotConnected
	}
	return t.conn, nil
}

func (t *WebSocketTransport) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if t.timeout > 0 {
		return time.Now().Add(t.timeout)
	}
	return time.Time{}
}

// Write sends p as one websocket message.
func (t *WebSocketTransport) Write(ctx context.Context, p []byte) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(t.deadline(ctx)); err != nil {
		return errors.Wrap(err, "setting write deadline")
	}
	return conn.WriteMessage(websocket.TextMessage, p)
}

// Read fills p from the next websocket message, keeping any overflow
// for the following call.
func (t *WebSocketTransport) Read(ctx context.Context, p []byte) (int, error) {
	t.mu.Lock()
	if len(t.pending) > 0 {
		n := copy(p, t.pending)
		t.pending = t.pending[n:]
		t.mu.Unlock()
		return n, nil
	}
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, errors.ErrNotConnected
	}

	if err := conn.SetReadDeadline(t.deadline(ctx)); err != nil {
		return 0, errors.Wrap(err, "setting read deadline")
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return 0, err
	}

	n := copy(p, data)
	if n < len(data) {
		t.mu.Lock()
		t.pending = append(t.pending, data[n:]...)
		t.mu.Unlock()
	}
	return n, nil
}
