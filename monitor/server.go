package monitor

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LabPy/lantz-core/logger"
)

// WebSocket timeout constants following Gorilla best practices
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	maxMessageSize = 4096
)

// Server pushes monitor updates to websocket clients.
type Server struct {
	monitor  *Monitor
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan Update
	closeOnce sync.Once
}

// NewServer builds a websocket server for a monitor. allowedOrigins
// restricts who may connect; an empty list allows same-origin only.
func NewServer(m *Monitor, allowedOrigins []string) *Server {
	s := &Server{
		monitor: m,
		log:     logger.Named("monitor.server"),
		clients: make(map[*client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return s
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla's same-origin default
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.HasPrefix(origin, a) {
				return true
			}
		}
		return false
	}
}

// Start begins forwarding monitor updates to connected clients.
func (s *Server) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	updates := s.monitor.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.monitor.Unsubscribe(updates)
		for {
			select {
			case <-s.ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				s.broadcast(u)
			}
		}
	}()
}

// Stop disconnects every client and ends the forwarding worker.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()
	s.wg.Wait()
}

// broadcast hands an update to every client, dropping it for clients
// whose send buffer is full. Sends are non-blocking and run under the
// read lock; closes only happen under the write lock, after the client
// left the map, so a send can never hit a closed channel.
func (s *Server) broadcast(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- u:
		default:
			// Channel full - skip
		}
	}
}

// ServeHTTP upgrades the request and registers the client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		server: s,
		conn:   conn,
		send:   make(chan Update, 64),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Debugw("Client connected", "remote", conn.RemoteAddr().String())

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *client) unregister() {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if _, ok := c.server.clients[c]; ok {
		delete(c.server.clients, c)
		c.close()
	}
}

// readPump drains the connection so pings and close frames are
// processed. Monitor clients never send payload messages.
func (c *client) readPump() {
	defer func() {
		c.unregister()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.log.Warnw("WebSocket read error", "error", err)
			}
			return
		}
	}
}

// writePump writes updates and keepalive pings to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case u, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(u); err != nil {
				c.server.log.Warnw("Update write error", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
