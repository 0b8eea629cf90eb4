// Package ws adapts gorilla websocket connections to transport.TextConn.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torhovland/segmentor/internal/transport"
)

const (
	defaultReadLimit    = 64 << 10
	closeWriteTimeout   = time.Second
	defaultHandshakeTTL = 10 * time.Second
)

// UpgraderConfig tunes the HTTP upgrade.
type UpgraderConfig struct {
	AllowedOrigins   []string
	HandshakeTimeout time.Duration
	ReadLimit        int64
}

// Upgrader turns HTTP requests into text connections.
type Upgrader struct {
	inner     websocket.Upgrader
	readLimit int64
}

// NewUpgrader constructs an Upgrader. An empty origin list accepts same-origin requests only.
func NewUpgrader(cfg UpgraderConfig) *Upgrader {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTTL
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}

	u := &Upgrader{
		inner: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		readLimit: cfg.ReadLimit,
	}
	if len(cfg.AllowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
		for _, origin := range cfg.AllowedOrigins {
			allowed[origin] = struct{}{}
		}
		u.inner.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			return sameHost(r)
		}
	}
	return u
}

// Upgrade performs the websocket handshake. On failure a response has already been written.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	c, err := u.inner.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(u.readLimit)
	return &Conn{conn: c}, nil
}

func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Conn is a websocket connection restricted to text frames.
type Conn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

// NewConn wraps an established websocket connection.
func NewConn(c *websocket.Conn) *Conn {
	return &Conn{conn: c}
}

// ReadText blocks until the next data frame. Binary frames yield transport.ErrUnexpectedFrame;
// read failures and close frames yield transport.ErrClosed.
func (c *Conn) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", transport.ErrClosed, err)
	}
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("%w: %v", transport.ErrClosed, err)
	}
	if messageType != websocket.TextMessage {
		return "", fmt.Errorf("%w: type %d", transport.ErrUnexpectedFrame, messageType)
	}
	return string(data), nil
}

// WriteText sends one text frame.
func (c *Conn) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrClosed, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrClosed, err)
	}
	return nil
}

// Close sends a normal close frame, best effort, and releases the connection. Safe to call twice.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// CloseOnDone closes the connection once ctx is done, unblocking a pending ReadText.
// The returned function detaches the watcher.
func (c *Conn) CloseOnDone(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() { _ = c.conn.Close() })
}
