// Package interfaces defines the seams between the core room machinery
// and its collaborators, so components can be tested against mocks.
package interfaces

import (
	"context"

	"quizroom/pkg/types"
)

// ChatStore is the durable side of the server: chat history plus the
// question bank. Implemented by internal/database.Manager.
type ChatStore interface {
	AppendMessage(ctx context.Context, msg *types.ChatMessage) error
	RecentMessages(ctx context.Context, roomCode string, limit int) ([]*types.ChatMessage, error)
	// PurgeRoomMessages deletes up to batchSize messages of a room and
	// reports how many rows went away; callers loop until zero.
	PurgeRoomMessages(ctx context.Context, roomCode string, batchSize int) (int, error)
	LoadQuestions(ctx context.Context) (map[string][]*types.Question, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// QuestionSource hands out questions by difficulty level.
type QuestionSource interface {
	// PickRandom returns a uniformly random question for the level, or
	// (nil, false) when the level is unknown or its pool is empty.
	PickRandom(level string) (*types.Question, bool)
	Levels() []string
}

// Pager delivers operator alerts over an out-of-band push channel.
type Pager interface {
	Page(ctx context.Context, roomCode, username, message string) error
	Enabled() bool
	SetEnabled(enabled bool)
}

// Notifier fans events out to connected clients. Delivery is best
// effort; individual write failures never abort a broadcast.
type Notifier interface {
	BroadcastToRoom(roomCode, event string, data any)
	SendToOthers(roomCode, excludeConnID, event string, data any)
	SendToOne(connID, event string, data any)
	BroadcastAll(event string, data any)
}

// Uploader forwards validated image bytes to the object-storage
// collaborator and returns the public URL it assigned.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (*types.UploadResult, error)
}
