// Package room implements the room registry and the per-connection
// session tracker. The two structures are mutated only together, inside
// a single manager transition, so no observer ever sees a session
// pointing at a room that does not contain it.
package room

import (
	"log"
	"sync"

	"github.com/samber/lo"
	"quizroom/pkg/interfaces"
	"quizroom/pkg/types"
)

// Room is one active room. A room exists if and only if it has at least
// one member; the transition that would empty it deletes it instead.
type Room struct {
	Code     string
	Question *types.Question
	HostID   string
	Members  map[string]string // connID -> display name
}

// JoinResult reports a completed create/join transition.
type JoinResult struct {
	IsNewRoom   bool
	RoomCode    string
	Username    string
	Question    *types.Question
	MemberCount int
	// Departed is set when the join implicitly left another room first
	// (a room switch). The caller broadcasts to the old room from it.
	Departed *LeaveResult
}

// LeaveResult reports a completed leave/disconnect transition.
type LeaveResult struct {
	RoomCode       string
	Username       string
	Reason         types.LeaveReason
	WasLast        bool
	RemainingCount int
	HostChanged    bool
	NewHostID      string
	NewHostName    string
}

// Manager owns the room map and the session map. One mutex serializes
// every transition; no transition blocks on I/O while holding it.
type Manager struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	sessions  map[string]*types.Session
	questions interfaces.QuestionSource
	// onEmpty fires inside the transition that evicts a room, exactly
	// once per eviction. It must not block; the history gateway hands
	// the code to its purge worker.
	onEmpty func(roomCode string)
}

// NewManager creates an empty registry. onEmpty may be nil.
func NewManager(questions interfaces.QuestionSource, onEmpty func(roomCode string)) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		sessions:  make(map[string]*types.Session),
		questions: questions,
		onEmpty:   onEmpty,
	}
}

// CreateRoom creates a room with the caller as host and sole member.
// Fails with ErrRoomExists if the code is taken; the existing room is
// left untouched. A caller already in another room is moved out of it in
// the same transition.
func (m *Manager) CreateRoom(code, level, connID, username string) (*JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[code]; exists {
		return nil, ErrRoomExists
	}

	departed := m.leaveCurrentLocked(connID, code)
	result := m.createLocked(code, level, connID, username)
	result.Departed = departed
	return result, nil
}

// JoinRoom adds the caller to a room, creating it when the code is
// unknown. Re-joining the current room just refreshes the display name.
// Joining while in a different room leaves that room first; the two
// steps form one transition.
func (m *Manager) JoinRoom(code, level, connID, username string) (*JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	departed := m.leaveCurrentLocked(connID, code)

	r, exists := m.rooms[code]
	if !exists {
		result := m.createLocked(code, level, connID, username)
		result.Departed = departed
		return result, nil
	}

	r.Members[connID] = username
	m.sessions[connID] = &types.Session{Username: username, RoomCode: code}

	return &JoinResult{
		IsNewRoom:   false,
		RoomCode:    code,
		Username:    username,
		Question:    r.Question,
		MemberCount: len(r.Members),
		Departed:    departed,
	}, nil
}

// LeaveRoom removes the caller from a room. Returns ErrNotMember when
// the room is unknown or the caller is not in it; no state changes.
func (m *Manager) LeaveRoom(connID, code string, reason types.LeaveReason) (*LeaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.rooms[code]
	if !exists {
		return nil, ErrNotMember
	}
	if _, member := r.Members[connID]; !member {
		return nil, ErrNotMember
	}

	result := m.removeMemberLocked(r, connID, reason)
	delete(m.sessions, connID)
	return result, nil
}

// Disconnect tears down a connection: removes it from its current room
// (if any) and drops the session. The second return is false when the
// connection was not in a room.
func (m *Manager) Disconnect(connID string) (*LeaveResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[connID]
	delete(m.sessions, connID)
	if !ok || session.RoomCode == "" {
		return nil, false
	}

	r, exists := m.rooms[session.RoomCode]
	if !exists {
		// Session pointed at an evicted room; nothing left to do.
		log.Printf("room: disconnect found stale session conn=%s room=%s", connID, session.RoomCode)
		return nil, false
	}
	if _, member := r.Members[connID]; !member {
		return nil, false
	}

	return m.removeMemberLocked(r, connID, types.LeaveDisconnected), true
}

// SetRoomQuestion draws a new question for the room and stores it.
// Membership is checked first; a missing pool leaves the stored question
// unchanged and returns ErrNoQuestion.
func (m *Manager) SetRoomQuestion(code, level, requesterID string) (*types.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.rooms[code]
	if !exists {
		return nil, ErrNotMember
	}
	if _, member := r.Members[requesterID]; !member {
		return nil, ErrNotMember
	}

	q, ok := m.questions.PickRandom(level)
	if !ok {
		return nil, ErrNoQuestion
	}

	r.Question = q
	return q, nil
}

// Session returns the tracked session for a connection.
func (m *Manager) Session(connID string) (types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[connID]
	if !ok {
		return types.Session{}, false
	}
	return *session, true
}

// IsMember reports whether a connection currently belongs to a room.
func (m *Manager) IsMember(code, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.rooms[code]
	if !exists {
		return false
	}
	_, member := r.Members[connID]
	return member
}

// MemberCount returns a room's current cardinality.
func (m *Manager) MemberCount(code string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.rooms[code]
	if !exists {
		return 0, false
	}
	return len(r.Members), true
}

// HostID returns a room's current host.
func (m *Manager) HostID(code string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.rooms[code]
	if !exists {
		return "", false
	}
	return r.HostID, true
}

// RoomExists reports whether a code maps to an active room.
func (m *Manager) RoomExists(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.rooms[code]
	return exists
}

// Snapshot returns code -> member count for every active room.
func (m *Manager) Snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return lo.MapValues(m.rooms, func(r *Room, _ string) int {
		return len(r.Members)
	})
}

// Stats returns registry counters for the health endpoint.
func (m *Manager) Stats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := 0
	for _, r := range m.rooms {
		members += len(r.Members)
	}
	return map[string]int{
		"active_rooms":  len(m.rooms),
		"tracked_conns": len(m.sessions),
		"room_members":  members,
	}
}

// createLocked registers a new room with the caller as host and updates
// the session in the same critical section. Caller holds the lock.
func (m *Manager) createLocked(code, level, connID, username string) *JoinResult {
	q, ok := m.questions.PickRandom(level)
	if !ok {
		// Degraded but non-fatal: the room starts without a question and
		// the creator is told so by the handler.
		q = nil
	}

	r := &Room{
		Code:     code,
		Question: q,
		HostID:   connID,
		Members:  map[string]string{connID: username},
	}
	m.rooms[code] = r
	m.sessions[connID] = &types.Session{Username: username, RoomCode: code}

	log.Printf("room: created code=%s host=%s level=%s", code, connID, level)

	return &JoinResult{
		IsNewRoom:   true,
		RoomCode:    code,
		Username:    username,
		Question:    q,
		MemberCount: 1,
	}
}

// leaveCurrentLocked moves a connection out of its current room when it
// is about to enter a different one. Returns nil when there was nothing
// to leave. Caller holds the lock.
func (m *Manager) leaveCurrentLocked(connID, newCode string) *LeaveResult {
	session, ok := m.sessions[connID]
	if !ok || session.RoomCode == "" || session.RoomCode == newCode {
		return nil
	}

	r, exists := m.rooms[session.RoomCode]
	if !exists {
		return nil
	}
	if _, member := r.Members[connID]; !member {
		return nil
	}

	return m.removeMemberLocked(r, connID, types.LeaveExplicit)
}

// removeMemberLocked performs the shared tail of every departure:
// membership removal, evict-on-empty, host re-election. Caller holds the
// lock and handles the session map.
func (m *Manager) removeMemberLocked(r *Room, connID string, reason types.LeaveReason) *LeaveResult {
	username := r.Members[connID]
	delete(r.Members, connID)

	result := &LeaveResult{
		RoomCode:       r.Code,
		Username:       username,
		Reason:         reason,
		RemainingCount: len(r.Members),
	}

	if len(r.Members) == 0 {
		delete(m.rooms, r.Code)
		result.WasLast = true
		log.Printf("room: evicted code=%s", r.Code)
		if m.onEmpty != nil {
			m.onEmpty(r.Code)
		}
		return result
	}

	if r.HostID == connID {
		// Any remaining member will do; selection is not a contract.
		for id, name := range r.Members {
			r.HostID = id
			result.HostChanged = true
			result.NewHostID = id
			result.NewHostName = name
			break
		}
		log.Printf("room: host reassigned code=%s host=%s", r.Code, r.HostID)
	}

	return result
}
