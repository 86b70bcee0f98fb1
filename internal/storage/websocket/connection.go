package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/hlvr/vrcore/pkg/streaming"
)

const (
	sendChSize   = 4096
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second

	// the viewer must answer a ping within pongWait
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var (
	ackTimeout       = 10 * time.Second
	reconnectBackoff = time.Second
)

// connection owns one viewer socket. A single writeLoop serializes writes;
// readLoop routes acks. Both restart after a reconnect.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	stop   chan struct{} // closed when conn is replaced
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{}
	closed bool

	wsURL  string
	secret string

	// start_session of the running session, replayed after reconnect so the
	// viewer can attach samples to it.
	sessionMsg []byte

	dropped    atomic.Uint64
	reconnects atomic.Uint64

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh: make(chan []byte, sendChSize),
		ackCh:  make(chan streaming.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	if !c.attach(conn) {
		return fmt.Errorf("connection closed")
	}
	return nil
}

// attach makes conn current and starts its loops. It refuses after close.
func (c *connection) attach(conn *ws.Conn) bool {
	stop := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.stop = stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn)
	return true
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) setSession(msg []byte) {
	c.mu.Lock()
	c.sessionMsg = msg
	c.mu.Unlock()
}

// writeLoop exits when conn fails or is replaced. It also keeps an idle
// viewer alive with pings, since samples stop while the player is in a menu.
func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var err error
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			err = write(conn, data)
		case <-ping.C:
			err = conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait))
		}
		if err != nil {
			c.logger.Warn("WebSocket write error", "error", err)
			go c.reconnect(conn)
			return
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (c *connection) readLoop(conn *ws.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		// any traffic proves the viewer is alive
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect replaces failed with a fresh socket using exponential backoff.
// Both loops may report the same failure; only the first caller proceeds.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	close(c.stop)
	c.mu.Unlock()

	backoff := reconnectBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		cached := c.sessionMsg
		c.mu.Unlock()

		if cached != nil {
			if err := write(conn, cached); err != nil {
				c.logger.Warn("Failed to replay start_session after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		if !c.attach(conn) {
			return
		}
		c.reconnects.Add(1)
		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send never blocks the caller; samples are dropped when the viewer lags.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.dropped.Add(1)
	}
}

// sendAndWait sends data and blocks until the viewer acknowledges ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}
