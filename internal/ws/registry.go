package ws

import "sync"

// Registry tracks live connections and their room subscriptions. It holds
// no session semantics; membership decisions belong to the room manager,
// the registry only mirrors them for message delivery.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection            // connID -> Connection
	rooms       map[string]map[string]*Connection // roomCode -> connID -> Connection
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]*Connection),
	}
}

// Register adds a connection to the global map.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID()] = conn
	return nil
}

// Unregister removes a connection from the global map and every room
// subscription. Only the registered instance is removed, so a stale
// cleanup cannot evict a replacement connection.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.connections[conn.ID()]
	if !exists || registered != conn {
		return
	}

	delete(r.connections, conn.ID())
	for code, members := range r.rooms {
		if members[conn.ID()] == conn {
			delete(members, conn.ID())
			if len(members) == 0 {
				delete(r.rooms, code)
			}
		}
	}
}

// Subscribe adds a registered connection to a room's delivery set.
func (r *Registry) Subscribe(connID, roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connID]
	if !exists {
		return
	}
	if r.rooms[roomCode] == nil {
		r.rooms[roomCode] = make(map[string]*Connection)
	}
	r.rooms[roomCode][connID] = conn
}

// Unsubscribe removes a connection from a room's delivery set.
func (r *Registry) Unsubscribe(connID, roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.rooms[roomCode]
	if !exists {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomCode)
	}
}

// Connection returns a connection by ID.
func (r *Registry) Connection(connID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[connID]
	return conn, exists
}

// RoomConnections returns every connection subscribed to a room.
func (r *Registry) RoomConnections(roomCode string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connections []*Connection
	for _, conn := range r.rooms[roomCode] {
		connections = append(connections, conn)
	}
	return connections
}

// AllConnections returns every registered connection.
func (r *Registry) AllConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	return connections
}

// Stats reports registry counters for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"subscribed_rooms":  len(r.rooms),
	}
}
