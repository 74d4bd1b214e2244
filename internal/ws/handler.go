package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizroom/internal/history"
	"quizroom/internal/paging"
	"quizroom/internal/room"
	"quizroom/pkg/interfaces"
	"quizroom/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is left to the deployment's reverse proxy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// HandlerOptions carries the tunables the event loop needs.
type HandlerOptions struct {
	MaxMessageLength int
	PageCooldown     time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
}

func (o HandlerOptions) withDefaults() HandlerOptions {
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = 2000
	}
	if o.PageCooldown <= 0 {
		o.PageCooldown = time.Minute
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	return o
}

// Handler owns the websocket endpoint: upgrade, per-connection read
// loop, and the event dispatch that drives room transitions.
type Handler struct {
	registry *Registry
	rooms    *room.Manager
	notifier interfaces.Notifier
	history  *history.Gateway
	pager    interfaces.Pager
	limiter  *paging.RateLimiter
	opts     HandlerOptions
}

func NewHandler(
	registry *Registry,
	rooms *room.Manager,
	notifier interfaces.Notifier,
	historyGateway *history.Gateway,
	pager interfaces.Pager,
	limiter *paging.RateLimiter,
	opts HandlerOptions,
) *Handler {
	return &Handler{
		registry: registry,
		rooms:    rooms,
		notifier: notifier,
		history:  historyGateway,
		pager:    pager,
		limiter:  limiter,
		opts:     opts.withDefaults(),
	}
}

// HandleWebSocket upgrades the request and runs the connection loop.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed err=%v", err)
		return
	}

	conn := NewConnection(raw)
	if err := h.registry.Register(conn); err != nil {
		log.Printf("ws: register failed conn=%s err=%v", conn.ID(), err)
		_ = conn.Close()
		return
	}

	log.Printf("ws: connected conn=%s remote=%s", conn.ID(), r.RemoteAddr)
	go h.handleConnection(conn)
}

func (h *Handler) handleConnection(conn *Connection) {
	defer h.cleanup(conn)

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error conn=%s err=%v", conn.ID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var envelope struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			h.sendError(conn, EventRoomError, "malformed event")
			continue
		}

		h.dispatch(conn, envelope.Event, envelope.Data)
	}
}

func (h *Handler) dispatch(conn *Connection, event string, data json.RawMessage) {
	switch event {
	case EventJoinRoom:
		h.handleJoin(conn, data, false)
	case EventCreateRoom:
		h.handleJoin(conn, data, true)
	case EventGetQuestion:
		h.handleGetQuestion(conn, data)
	case EventSendMessage:
		h.handleSendMessage(conn, data)
	case EventLeaveRoom:
		h.handleLeaveRoom(conn, data)
	case EventCallAdmin:
		h.handleCallAdmin(conn, data)
	default:
		h.sendError(conn, EventRoomError, fmt.Sprintf("unknown event %q", event))
	}
}

// cleanup runs when the read loop exits for any reason. The room
// transition happens first so departure notifications can still reach
// the remaining members.
func (h *Handler) cleanup(conn *Connection) {
	if departed, ok := h.rooms.Disconnect(conn.ID()); ok {
		h.registry.Unsubscribe(conn.ID(), departed.RoomCode)
		h.notifyDeparture(conn.ID(), departed)
	}
	h.limiter.Forget(conn.ID())
	h.registry.Unregister(conn)
	_ = conn.Close()
	log.Printf("ws: disconnected conn=%s", conn.ID())
}

func (h *Handler) handleJoin(conn *Connection, data json.RawMessage, explicitCreate bool) {
	var req JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, EventRoomError, "malformed join request")
		return
	}

	roomCode := types.NormalizeRoomCode(req.RoomCode)
	if err := types.ValidateRoomCode(roomCode); err != nil {
		h.sendError(conn, EventRoomError, err.Error())
		return
	}
	username, err := types.NormalizeUsername(req.Username)
	if err != nil {
		h.sendError(conn, EventRoomError, err.Error())
		return
	}

	var result *room.JoinResult
	if explicitCreate {
		result, err = h.rooms.CreateRoom(roomCode, req.Level, conn.ID(), username)
	} else {
		result, err = h.rooms.JoinRoom(roomCode, req.Level, conn.ID(), username)
	}
	if err != nil {
		if errors.Is(err, room.ErrRoomExists) {
			h.sendError(conn, EventRoomExists, fmt.Sprintf("room %s already exists", roomCode))
		} else {
			h.sendError(conn, EventRoomError, err.Error())
		}
		return
	}

	conn.SetUsername(result.Username)

	// An atomic switch: the old room hears about the departure before
	// the new room hears about the arrival.
	if result.Departed != nil {
		h.registry.Unsubscribe(conn.ID(), result.Departed.RoomCode)
		h.notifyDeparture(conn.ID(), result.Departed)
	}
	h.registry.Subscribe(conn.ID(), result.RoomCode)

	if result.IsNewRoom {
		h.send(conn, EventRoomCreated, RoomCreatedPayload{
			RoomCode:    result.RoomCode,
			Question:    result.Question,
			MemberCount: result.MemberCount,
		})
	} else {
		// History is read after the membership commit; a slow backfill
		// degrades to an empty list rather than blocking the join.
		backfill := h.loadBackfill(result.RoomCode)
		h.send(conn, EventRoomJoined, RoomJoinedPayload{
			RoomCode:    result.RoomCode,
			Question:    result.Question,
			MemberCount: result.MemberCount,
			ChatHistory: backfill,
		})
	}

	h.notifier.SendToOthers(result.RoomCode, conn.ID(), EventUserJoined, UserJoinedPayload{
		UserID:      conn.ID(),
		Username:    result.Username,
		Message:     fmt.Sprintf("%s joined the room", result.Username),
		MemberCount: result.MemberCount,
	})
	h.notifier.SendToOthers(result.RoomCode, conn.ID(), EventSystemMessage, SystemMessagePayload{
		Message: fmt.Sprintf("%s joined the room", result.Username),
	})

	log.Printf("ws: joined conn=%s room=%s members=%d new=%t", conn.ID(), result.RoomCode, result.MemberCount, result.IsNewRoom)
}

func (h *Handler) loadBackfill(roomCode string) []*MessagePayload {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := h.history.Recent(ctx, roomCode)
	if err != nil {
		log.Printf("ws: backfill failed room=%s err=%v", roomCode, err)
		return []*MessagePayload{}
	}

	backfill := make([]*MessagePayload, 0, len(messages))
	for _, msg := range messages {
		backfill = append(backfill, NewMessagePayload(msg))
	}
	return backfill
}

func (h *Handler) handleGetQuestion(conn *Connection, data json.RawMessage) {
	var req GetQuestionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, EventQuestionError, "malformed question request")
		return
	}

	roomCode := types.NormalizeRoomCode(req.RoomCode)
	question, err := h.rooms.SetRoomQuestion(roomCode, req.Level, conn.ID())
	if err != nil {
		switch {
		case errors.Is(err, room.ErrNoQuestion):
			h.sendError(conn, EventQuestionError, fmt.Sprintf("no questions available for level %q", req.Level))
		case errors.Is(err, room.ErrNotMember):
			h.sendError(conn, EventQuestionError, "not a member of this room")
		default:
			h.sendError(conn, EventQuestionError, err.Error())
		}
		return
	}

	h.notifier.BroadcastToRoom(roomCode, EventNewQuestion, NewQuestionPayload{Question: question})
	h.notifier.BroadcastToRoom(roomCode, EventSystemMessage, SystemMessagePayload{
		Message: fmt.Sprintf("%s requested a new question", conn.Username()),
	})
}

func (h *Handler) handleSendMessage(conn *Connection, data json.RawMessage) {
	var req SendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, EventMessageError, "malformed message")
		return
	}

	roomCode := types.NormalizeRoomCode(req.RoomCode)
	if !h.rooms.IsMember(roomCode, conn.ID()) {
		h.sendError(conn, EventMessageError, "not a member of this room")
		return
	}

	msg := &types.ChatMessage{
		ID:         uuid.New().String(),
		RoomCode:   roomCode,
		SenderID:   conn.ID(),
		SenderName: conn.Username(),
		Text:       req.Text,
		ImageURL:   req.ImageURL,
		Timestamp:  time.Now(),
	}
	if err := msg.Validate(h.opts.MaxMessageLength); err != nil {
		h.sendError(conn, EventMessageError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.history.Append(ctx, msg); err != nil {
		log.Printf("ws: message persist failed room=%s err=%v", roomCode, err)
		h.sendError(conn, EventMessageError, "message could not be saved")
		return
	}

	h.notifier.BroadcastToRoom(roomCode, EventNewMessage, NewMessagePayload(msg))
}

func (h *Handler) handleLeaveRoom(conn *Connection, data json.RawMessage) {
	var req LeaveRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, EventRoomError, "malformed leave request")
		return
	}

	roomCode := types.NormalizeRoomCode(req.RoomCode)
	result, err := h.rooms.LeaveRoom(conn.ID(), roomCode, types.LeaveExplicit)
	if err != nil {
		h.sendError(conn, EventRoomError, "not a member of this room")
		return
	}

	h.registry.Unsubscribe(conn.ID(), roomCode)
	h.notifyDeparture(conn.ID(), result)
	log.Printf("ws: left conn=%s room=%s remaining=%d", conn.ID(), roomCode, result.RemainingCount)
}

func (h *Handler) handleCallAdmin(conn *Connection, data json.RawMessage) {
	var req CallAdminRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, EventAdminCallError, "malformed admin call")
		return
	}

	if !h.pager.Enabled() {
		h.sendError(conn, EventAdminCallError, "admin calls are currently disabled")
		return
	}

	allowed, remaining := h.limiter.TryConsume(conn.ID(), h.opts.PageCooldown)
	if !allowed {
		h.sendError(conn, EventAdminCallError,
			fmt.Sprintf("please wait %d seconds before calling again", int(remaining.Seconds())+1))
		return
	}

	roomCode := types.NormalizeRoomCode(req.RoomCode)
	if !h.rooms.IsMember(roomCode, conn.ID()) {
		h.sendError(conn, EventAdminCallError, "not a member of this room")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.pager.Page(ctx, roomCode, conn.Username(), req.Message); err != nil {
		log.Printf("ws: admin page failed room=%s err=%v", roomCode, err)
		h.sendError(conn, EventAdminCallError, "could not reach the admin, try again later")
		return
	}

	h.send(conn, EventAdminCallSuccess, SystemMessagePayload{
		Message: "admin has been notified",
	})
	log.Printf("ws: admin paged room=%s conn=%s", roomCode, conn.ID())
}

// notifyDeparture tells the remaining members that someone left. The
// departed connection is already unsubscribed, so a room broadcast
// reaches only the remainder.
func (h *Handler) notifyDeparture(connID string, result *room.LeaveResult) {
	if result.WasLast {
		return
	}

	message := fmt.Sprintf("%s left the room", result.Username)
	if result.Reason == types.LeaveDisconnected {
		message = fmt.Sprintf("%s disconnected", result.Username)
	}
	h.notifier.BroadcastToRoom(result.RoomCode, EventUserLeft, UserLeftPayload{
		UserID:      connID,
		Username:    result.Username,
		Message:     message,
		MemberCount: result.RemainingCount,
	})
	h.notifier.BroadcastToRoom(result.RoomCode, EventSystemMessage, SystemMessagePayload{
		Message: message,
	})
}

func (h *Handler) send(conn *Connection, event string, data any) {
	if err := conn.WriteJSON(types.Event{Event: event, Data: data}); err != nil {
		log.Printf("ws: reply dropped event=%s conn=%s err=%v", event, conn.ID(), err)
	}
}

func (h *Handler) sendError(conn *Connection, event, message string) {
	h.send(conn, event, ErrorPayload{Message: message})
}
