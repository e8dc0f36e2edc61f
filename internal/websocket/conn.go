// internal/websocket/conn.go
package websocket

// Connection is one live transport connection.
type Connection interface {
	// ID is unique per physical connection for the process lifetime.
	ID() string
	// Send queues a text frame. It must not block on a slow peer.
	Send(data []byte) error
	Close() error
}
