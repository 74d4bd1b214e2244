package hub

import (
	"log"

	"quizroom/internal/ws"
	"quizroom/pkg/types"
)

// Dispatcher fans events out over the connection registry. Delivery is
// best effort: a failed write is logged and the rest of the fan-out
// proceeds, because one slow socket must not stall a room broadcast.
type Dispatcher struct {
	registry *ws.Registry
}

func NewDispatcher(registry *ws.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// BroadcastToRoom delivers an event to every connection in a room.
func (d *Dispatcher) BroadcastToRoom(roomCode, event string, data any) {
	for _, conn := range d.registry.RoomConnections(roomCode) {
		d.deliver(conn, event, data)
	}
}

// SendToOthers delivers an event to every room connection except one.
func (d *Dispatcher) SendToOthers(roomCode, excludeConnID, event string, data any) {
	for _, conn := range d.registry.RoomConnections(roomCode) {
		if conn.ID() == excludeConnID {
			continue
		}
		d.deliver(conn, event, data)
	}
}

// SendToOne delivers an event to a single connection. Unknown
// connection IDs are a no-op; the target may have disconnected between
// the state transition and the reply.
func (d *Dispatcher) SendToOne(connID, event string, data any) {
	conn, exists := d.registry.Connection(connID)
	if !exists {
		return
	}
	d.deliver(conn, event, data)
}

// BroadcastAll delivers an event to every registered connection.
func (d *Dispatcher) BroadcastAll(event string, data any) {
	for _, conn := range d.registry.AllConnections() {
		d.deliver(conn, event, data)
	}
}

func (d *Dispatcher) deliver(conn *ws.Connection, event string, data any) {
	if err := conn.WriteJSON(types.Event{Event: event, Data: data}); err != nil {
		log.Printf("hub: dropped event=%s conn=%s err=%v", event, conn.ID(), err)
	}
}
