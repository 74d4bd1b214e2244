package ws

import "quizroom/pkg/types"

// Client to server events.
const (
	EventJoinRoom    = "join-room"
	EventCreateRoom  = "create-room"
	EventGetQuestion = "get-question"
	EventSendMessage = "send-message"
	EventLeaveRoom   = "leave-room"
	EventCallAdmin   = "call-admin"
)

// Server to client events.
const (
	EventRoomCreated            = "room-created"
	EventRoomJoined             = "room-joined"
	EventRoomExists             = "room-exists"
	EventRoomError              = "room-error"
	EventNewQuestion            = "new-question"
	EventQuestionError          = "question-error"
	EventNewMessage             = "new-message"
	EventMessageError           = "message-error"
	EventUserJoined             = "user-joined"
	EventUserLeft               = "user-left"
	EventSystemMessage          = "system-message"
	EventAdminCallSuccess       = "admin-called-successfully"
	EventAdminCallError         = "admin-call-error"
	EventAdminCallStatusChanged = "admin-call-status-changed"
)

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username,omitempty"`
	Level    string `json:"level,omitempty"`
}

type GetQuestionRequest struct {
	RoomCode string `json:"roomCode"`
	Level    string `json:"level"`
}

type SendMessageRequest struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type LeaveRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type CallAdminRequest struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message,omitempty"`
}

type RoomCreatedPayload struct {
	RoomCode    string          `json:"roomCode"`
	Question    *types.Question `json:"question"`
	MemberCount int             `json:"memberCount"`
}

type RoomJoinedPayload struct {
	RoomCode    string            `json:"roomCode"`
	Question    *types.Question   `json:"question"`
	MemberCount int               `json:"memberCount"`
	ChatHistory []*MessagePayload `json:"chatHistory"`
}

type UserJoinedPayload struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Message     string `json:"message"`
	MemberCount int    `json:"memberCount"`
}

type UserLeftPayload struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Message     string `json:"message"`
	MemberCount int    `json:"memberCount"`
}

type NewQuestionPayload struct {
	Question *types.Question `json:"question"`
}

type MessagePayload struct {
	ID          string `json:"id"`
	RoomCode    string `json:"roomCode"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	Text        string `json:"text,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	TimestampMs int64  `json:"timestampMs"`
}

type SystemMessagePayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type StatusChangedPayload struct {
	Enabled bool `json:"enabled"`
}

// NewMessagePayload converts a persisted chat message to its wire form.
func NewMessagePayload(msg *types.ChatMessage) *MessagePayload {
	return &MessagePayload{
		ID:          msg.ID,
		RoomCode:    msg.RoomCode,
		SenderID:    msg.SenderID,
		SenderName:  msg.SenderName,
		Text:        msg.Text,
		ImageURL:    msg.ImageURL,
		TimestampMs: msg.TimestampMs(),
	}
}
