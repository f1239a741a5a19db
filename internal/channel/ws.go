package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/pkg/types"
)

const (
	defaultAttempts     = 5
	defaultRetryDelay   = 2 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

type subscriber struct {
	id int
	fn Handler
}

// WSChannel is the websocket-backed Channel. One reader goroutine owns
// the connection and dispatches frames; reconnection happens inside that
// goroutine with a fixed per-outage attempt budget, after which
// SignalConnectionLost fires and the channel stops retrying.
type WSChannel struct {
	url          string
	log          *zap.Logger
	attempts     int
	retryDelay   time.Duration
	writeTimeout time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	closed   bool
	nextID   int
	handlers map[string][]subscriber
}

func NewWS(url string, log *zap.Logger) *WSChannel {
	return &WSChannel{
		url:          url,
		log:          log,
		attempts:     defaultAttempts,
		retryDelay:   defaultRetryDelay,
		writeTimeout: defaultWriteTimeout,
		handlers:     map[string][]subscriber{},
	}
}

func (c *WSChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	c.dispatch(SignalConnected, nil)
	return nil
}

func (c *WSChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.log.Warn("channel dial failed",
			zap.Int("attempt", i+1),
			zap.Int("budget", c.attempts),
			zap.Error(err))
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrConnectFailed, c.attempts, lastErr)
}

func (c *WSChannel) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *WSChannel) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	msg, err := types.NewMessage(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (c *WSChannel) On(event string, h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], subscriber{id: id, fn: h})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.handlers[event]
		for i, s := range subs {
			if s.id == id {
				c.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (c *WSChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			if c.isClosed() {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.dispatch(SignalSocketError, nil)
			}

			next, derr := c.dial(context.Background())
			if derr != nil {
				c.mu.Lock()
				c.conn = nil
				c.mu.Unlock()
				c.dispatch(SignalConnectionLost, nil)
				return
			}

			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				_ = next.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			c.conn = next
			c.mu.Unlock()
			conn = next
			// A fresh socket carries no session identity; subscribers
			// must re-announce and resync on this signal.
			c.dispatch(SignalConnected, nil)
			continue
		}

		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("channel: dropping unparseable frame", zap.Error(err))
			continue
		}
		c.dispatch(msg.Event, msg.Data)
	}
}

// dispatch calls the event's handlers sequentially in subscription
// order, off a copy so handlers may unsubscribe themselves.
func (c *WSChannel) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	subs := append([]subscriber(nil), c.handlers[event]...)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(data)
	}
}

func (c *WSChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
