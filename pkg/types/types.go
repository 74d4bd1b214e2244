package types

import (
	"time"
)

// Question is one entry of the question bank. Immutable once loaded;
// rooms hold a pointer to the record the provider handed out.
type Question struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Difficulty int    `json:"difficulty"`
}

// ChatMessage is a persisted room chat message. Exactly one of Text and
// ImageURL is expected to be non-empty.
type ChatMessage struct {
	ID         string    `json:"id"`
	RoomCode   string    `json:"roomCode"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Timestamp  time.Time `json:"-"`
}

// TimestampMs is the wire representation of the message timestamp.
func (m *ChatMessage) TimestampMs() int64 {
	return m.Timestamp.UnixMilli()
}

// Event is the envelope for every frame on the websocket channel, both
// directions: {"event": "...", "data": {...}}.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// UploadResult is what the object-storage collaborator returns for a
// stored image.
type UploadResult struct {
	ImageURL string `json:"imageUrl"`
	PublicID string `json:"publicId"`
}

// Session is the per-connection record the room manager keeps in lockstep
// with room membership. RoomCode is empty while the connection is not in
// any room.
type Session struct {
	Username string `json:"username"`
	RoomCode string `json:"roomCode"`
}

// LeaveReason distinguishes an explicit leave-room from a socket drop.
// The registry transition is identical; broadcast wording differs.
type LeaveReason int

const (
	LeaveExplicit LeaveReason = iota
	LeaveDisconnected
)

func (r LeaveReason) String() string {
	if r == LeaveDisconnected {
		return "disconnected"
	}
	return "left"
}
