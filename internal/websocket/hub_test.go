package websocket

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func connIDs(conns []Connection) []string {
	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID())
	}
	sort.Strings(ids)
	return ids
}

func TestHubAddRemove(t *testing.T) {
	h := NewHub()
	a1, a2, b1 := newFakeConn("a1"), newFakeConn("a2"), newFakeConn("b1")

	h.Add(a1, "alice")
	h.Add(a2, "alice")
	h.Add(b1, "bob")

	if got := h.TotalConnections(); got != 3 {
		t.Errorf("expected 3 connections, got %d", got)
	}
	if got := h.TotalClients(); got != 2 {
		t.Errorf("expected 2 clients, got %d", got)
	}
	if got := connIDs(h.Connections("alice")); len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Errorf("unexpected alice connections %v", got)
	}

	clientID, ok := h.Remove("a1")
	if !ok || clientID != "alice" {
		t.Fatalf("expected to remove a1 for alice, got %q %v", clientID, ok)
	}
	if _, ok := h.ClientID("a1"); ok {
		t.Error("a1 should be gone")
	}
	if got := connIDs(h.Connections("alice")); len(got) != 1 || got[0] != "a2" {
		t.Errorf("unexpected alice connections %v", got)
	}

	if _, ok := h.Remove("a1"); ok {
		t.Error("second remove should report false")
	}

	h.Remove("a2")
	if got := h.TotalClients(); got != 1 {
		t.Errorf("client without connections should be dropped, got %d clients", got)
	}
	if got := h.Connections("alice"); len(got) != 0 {
		t.Errorf("expected no connections, got %d", len(got))
	}
}

func TestHubReAddMovesClient(t *testing.T) {
	h := NewHub()
	c := newFakeConn("c1")

	h.Add(c, "first")
	h.Add(c, "second")

	if id, _ := h.ClientID("c1"); id != "second" {
		t.Errorf("expected second, got %q", id)
	}
	if got := h.Connections("first"); len(got) != 0 {
		t.Errorf("connection still listed under old client: %v", connIDs(got))
	}
	if got := h.TotalConnections(); got != 1 {
		t.Errorf("expected 1 connection, got %d", got)
	}
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub()
	conns := []*fakeConn{newFakeConn("x"), newFakeConn("y"), newFakeConn("z")}
	for i, c := range conns {
		h.Add(c, fmt.Sprintf("client-%d", i))
	}

	h.CloseAll()

	for _, c := range conns {
		if err := c.Send([]byte("late")); err != ErrConnectionClosed {
			t.Errorf("connection %s not closed", c.ID())
		}
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	h := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("conn-%d", i))
			h.Add(c, fmt.Sprintf("client-%d", i%10))
			_ = h.Connections(fmt.Sprintf("client-%d", i%10))
			if i%2 == 0 {
				h.Remove(c.ID())
			}
		}(i)
	}
	wg.Wait()

	if got := h.TotalConnections(); got != 50 {
		t.Errorf("expected 50 connections, got %d", got)
	}
	if got := h.TotalClients(); got != 5 {
		t.Errorf("expected 5 clients with odd connections, got %d", got)
	}
}
