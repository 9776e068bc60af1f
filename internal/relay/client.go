package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"enclave/internal/domain"
)

// Client is a websocket connection to the relay.
type Client struct {
	conn *websocket.Conn
	log  logrus.FieldLogger

	mu sync.Mutex // serialises writes
}

// Dial connects to the relay websocket at url. A nil dialer uses
// websocket.DefaultDialer.
func Dial(ctx context.Context, url string, dialer *websocket.Dialer, log logrus.FieldLogger) (*Client, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("relay dial %s: %w", url, err)
	}
	return &Client{conn: conn, log: log}, nil
}

// Emit sends one event. The context deadline, if any, bounds the write.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	b, err := encodeFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Zero when ctx has no deadline, which clears any earlier one.
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("relay emit %s: %w", event, err)
	}
	return nil
}

// Run reads frames and passes each to handle until the connection closes or
// ctx is cancelled. handle runs on the read goroutine; frames arrive in
// order.
func (c *Client) Run(ctx context.Context, handle func(domain.Frame)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("relay read: %w", err)
		}
		var f domain.Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			c.log.WithError(err).Warn("malformed frame from relay")
			continue
		}
		handle(f)
	}
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

var _ domain.RelayClient = (*Client)(nil)
