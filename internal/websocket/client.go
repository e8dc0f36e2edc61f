// internal/websocket/client.go
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB

	DefaultSendBuffer = 256
)

// MessageDispatcher receives every inbound text frame.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, conn Connection, raw []byte)
}

// Client is one gorilla websocket connection. It implements Connection.
type Client struct {
	id       string
	clientID string
	conn     *websocket.Conn
	send     chan []byte
	logger   *zap.Logger

	// Context for graceful shutdown
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ Connection = (*Client)(nil)

func NewClient(id, clientID string, conn *websocket.Conn, sendBuffer int, logger *zap.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:       id,
		clientID: clientID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

// ClientID returns the application-level id the connection was opened with.
func (c *Client) ClientID() string {
	return c.clientID
}

// ReadPump reads frames until the peer goes away and hands each text frame
// to d on its own goroutine. Frames are read in arrival order but their
// processing is not serialized.
func (c *Client) ReadPump(d MessageDispatcher) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// in-flight dispatches outlive the socket; their replies are dropped
	dispatchCtx := context.WithoutCancel(c.ctx)

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error",
					zap.String("connection_id", c.id),
					zap.String("client_id", c.clientID),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		go d.Dispatch(dispatchCtx, c, message)
	}
}

// WritePump writes queued frames and keepalive pings until the client is
// closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues a frame without blocking. A peer that cannot keep up with
// its buffer is disconnected.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("websocket send buffer full, closing connection",
			zap.String("connection_id", c.id),
			zap.String("client_id", c.clientID),
		)
		c.Close()
		return ErrSendBufferFull
	}
}

// Close stops both pumps. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		// unblock ReadPump if WritePump is not running
		_ = c.conn.SetReadDeadline(time.Now())
	})
	return nil
}
