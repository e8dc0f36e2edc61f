package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	ch     chan []byte
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, ch: make(chan []byte, 64)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	c.frames = append(c.frames, data)
	select {
	case c.ch <- data:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// next waits for the next frame delivered asynchronously.
func (c *fakeConn) next(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-c.ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatalf("connection %s: no frame received", c.id)
		return nil
	}
}

func (c *fakeConn) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case data := <-c.ch:
		t.Fatalf("connection %s: unexpected frame %s", c.id, data)
	case <-time.After(wait):
	}
}

type staticResolver map[string]string

func (r staticResolver) TryGetClientID(conn Connection) (string, bool) {
	id, ok := r[conn.ID()]
	return id, ok
}

type wireReply struct {
	Type      string          `json:"Type"`
	RequestID string          `json:"RequestId"`
	TopicKey  string          `json:"TopicKey"`
	Topic     string          `json:"Topic"`
	Payload   json.RawMessage `json:"Payload"`
}

type wireError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

func decodeReply(t *testing.T, data []byte) wireReply {
	t.Helper()
	var r wireReply
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("failed to decode reply %s: %v", data, err)
	}
	return r
}

func decodeError(t *testing.T, data []byte) (wireReply, wireError) {
	t.Helper()
	r := decodeReply(t, data)
	if r.Type != "Error" {
		t.Fatalf("expected Error reply, got %s", data)
	}
	var e wireError
	if err := json.Unmarshal(r.Payload, &e); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	return r, e
}

func lastFrame(t *testing.T, c *fakeConn) []byte {
	t.Helper()
	frames := c.sent()
	if len(frames) == 0 {
		t.Fatalf("connection %s: nothing sent", c.id)
	}
	return frames[len(frames)-1]
}
