package ws

import (
	"sync"
	"testing"
)

func newRegisteredConnection(t *testing.T, registry *Registry) *Connection {
	t.Helper()

	raw, _ := testSocket(t)
	conn := NewConnection(raw)
	t.Cleanup(func() { conn.Close() })

	if err := registry.Register(conn); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return conn
}

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(nil); err != ErrNilConnection {
		t.Errorf("expected ErrNilConnection, got %v", err)
	}

	conn := newRegisteredConnection(t, registry)

	got, exists := registry.Connection(conn.ID())
	if !exists || got != conn {
		t.Error("registered connection should be retrievable")
	}
	if stats := registry.Stats(); stats["total_connections"] != 1 {
		t.Errorf("expected 1 connection, got %d", stats["total_connections"])
	}
}

func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry()
	conn := newRegisteredConnection(t, registry)
	registry.Subscribe(conn.ID(), "AB12CD")

	registry.Unregister(conn)

	if _, exists := registry.Connection(conn.ID()); exists {
		t.Error("unregistered connection should be gone")
	}
	if len(registry.RoomConnections("AB12CD")) != 0 {
		t.Error("unregister must clear room subscriptions")
	}

	// Idempotent.
	registry.Unregister(conn)
	registry.Unregister(nil)
}

func TestRegistrySubscribe(t *testing.T) {
	registry := NewRegistry()
	conn1 := newRegisteredConnection(t, registry)
	conn2 := newRegisteredConnection(t, registry)

	registry.Subscribe(conn1.ID(), "AB12CD")
	registry.Subscribe(conn2.ID(), "AB12CD")
	registry.Subscribe("unknown-conn", "AB12CD")

	members := registry.RoomConnections("AB12CD")
	if len(members) != 2 {
		t.Fatalf("expected 2 room connections, got %d", len(members))
	}

	registry.Unsubscribe(conn1.ID(), "AB12CD")
	if len(registry.RoomConnections("AB12CD")) != 1 {
		t.Error("unsubscribe should shrink the room set")
	}

	registry.Unsubscribe(conn2.ID(), "AB12CD")
	if stats := registry.Stats(); stats["subscribed_rooms"] != 0 {
		t.Error("empty room sets must be dropped")
	}

	// Unknown room is a no-op.
	registry.Unsubscribe(conn1.ID(), "NOPE42")
}

func TestRegistryAllConnections(t *testing.T) {
	registry := NewRegistry()
	conn1 := newRegisteredConnection(t, registry)
	conn2 := newRegisteredConnection(t, registry)

	all := registry.AllConnections()
	if len(all) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(all))
	}
	seen := map[string]bool{}
	for _, conn := range all {
		seen[conn.ID()] = true
	}
	if !seen[conn1.ID()] || !seen[conn2.ID()] {
		t.Error("AllConnections must include every registered connection")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	conns := make([]*Connection, 20)
	for i := range conns {
		conns[i] = newRegisteredConnection(t, registry)
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			registry.Subscribe(c.ID(), "AB12CD")
			registry.RoomConnections("AB12CD")
			registry.Unsubscribe(c.ID(), "AB12CD")
			registry.Unregister(c)
		}(conn)
	}
	wg.Wait()

	if stats := registry.Stats(); stats["total_connections"] != 0 {
		t.Errorf("expected empty registry, got %d", stats["total_connections"])
	}
}
