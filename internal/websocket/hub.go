// internal/websocket/hub.go
package websocket

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const hubShards = 32

type hubEntry struct {
	clientID string
	conn     Connection
}

type hubShard struct {
	mu sync.RWMutex
	// Registered connections by connection ID
	conns map[string]hubEntry
	// Live connection IDs by client ID
	clients map[string]map[string]Connection
}

// Hub is this process's table of live connections. It is sharded by key
// hash so opens, closes and broadcasts for unrelated clients do not
// contend on one lock.
type Hub struct {
	shards [hubShards]*hubShard
}

func NewHub() *Hub {
	h := &Hub{}
	for i := range h.shards {
		h.shards[i] = &hubShard{
			conns:   make(map[string]hubEntry),
			clients: make(map[string]map[string]Connection),
		}
	}
	return h
}

func (h *Hub) shard(key string) *hubShard {
	return h.shards[xxhash.Sum64String(key)%hubShards]
}

// Add registers conn under clientID. Adding the same connection again
// moves it to the new client id.
func (h *Hub) Add(conn Connection, clientID string) {
	id := conn.ID()

	cs := h.shard(id)
	cs.mu.Lock()
	prev, existed := cs.conns[id]
	cs.conns[id] = hubEntry{clientID: clientID, conn: conn}
	cs.mu.Unlock()

	if existed && prev.clientID != clientID {
		h.detach(prev.clientID, id)
	}

	ks := h.shard(clientID)
	ks.mu.Lock()
	set, ok := ks.clients[clientID]
	if !ok {
		set = make(map[string]Connection)
		ks.clients[clientID] = set
	}
	set[id] = conn
	ks.mu.Unlock()
}

// Remove drops the connection and reports the client id it was held under.
func (h *Hub) Remove(connID string) (string, bool) {
	cs := h.shard(connID)
	cs.mu.Lock()
	entry, ok := cs.conns[connID]
	if ok {
		delete(cs.conns, connID)
	}
	cs.mu.Unlock()

	if !ok {
		return "", false
	}
	h.detach(entry.clientID, connID)
	return entry.clientID, true
}

func (h *Hub) detach(clientID, connID string) {
	ks := h.shard(clientID)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if set, ok := ks.clients[clientID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(ks.clients, clientID)
		}
	}
}

func (h *Hub) ClientID(connID string) (string, bool) {
	cs := h.shard(connID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	entry, ok := cs.conns[connID]
	return entry.clientID, ok
}

// Connections returns a snapshot of the client's live connections.
func (h *Hub) Connections(clientID string) []Connection {
	ks := h.shard(clientID)
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	set := ks.clients[clientID]
	conns := make([]Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) TotalConnections() int {
	total := 0
	for _, s := range h.shards {
		s.mu.RLock()
		total += len(s.conns)
		s.mu.RUnlock()
	}
	return total
}

func (h *Hub) TotalClients() int {
	total := 0
	for _, s := range h.shards {
		s.mu.RLock()
		total += len(s.clients)
		s.mu.RUnlock()
	}
	return total
}

// CloseAll closes every live connection. Used on shutdown.
func (h *Hub) CloseAll() {
	var conns []Connection
	for _, s := range h.shards {
		s.mu.RLock()
		for _, e := range s.conns {
			conns = append(conns, e.conn)
		}
		s.mu.RUnlock()
	}
	for _, c := range conns {
		_ = c.Close()
	}
}
