package services

import (
	"sync"

	"feelings/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sessionSendBuffer = 64

// Session is one live websocket connection. It is owned by the hub from Add
// until Remove and learns its (identity, role) from the first attributed
// action it carries.
type Session struct {
	ID       string
	Identity string
	Role     models.Role

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// writePump drains the outbound buffer onto the wire. A write error just
// stops the pump; the read loop notices the dead connection and removes the
// session.
func (s *Session) writePump() {
	for msg := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

// SessionHub owns the set of connected sessions and fans broadcast payloads
// out to them. Delivery is fire-and-forget: a session whose buffer is full
// loses the message and recovers via reconnect-and-refetch.
type SessionHub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	rooms    map[string]map[*Session]struct{}
}

func NewSessionHub() *SessionHub {
	return &SessionHub{
		sessions: make(map[*Session]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
	}
}

func (h *SessionHub) Add(conn *websocket.Conn) *Session {
	session := &Session{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sessionSendBuffer),
	}
	h.mu.Lock()
	h.sessions[session] = struct{}{}
	h.mu.Unlock()

	go session.writePump()
	return session
}

func (h *SessionHub) Remove(session *Session) {
	h.mu.Lock()
	delete(h.sessions, session)
	for room, members := range h.rooms {
		delete(members, session)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	session.close()
}

// Attribute associates the session with the identity that first acted on it.
func (h *SessionHub) Attribute(session *Session, identity string, role models.Role) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if session.Identity == "" {
		session.Identity = identity
		session.Role = role
	}
}

func (h *SessionHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Send delivers to a single session without blocking fan-out.
func (h *SessionHub) Send(session *Session, message []byte) {
	select {
	case session.send <- message:
	default:
	}
}

// BroadcastAll delivers the payload to every connected session exactly once.
func (h *SessionHub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions {
		select {
		case session.send <- message:
		default:
		}
	}
}

// BroadcastExcept delivers to every session other than the originator.
// A nil origin is a plain BroadcastAll (REST mutations have no session).
func (h *SessionHub) BroadcastExcept(origin *Session, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions {
		if session == origin {
			continue
		}
		select {
		case session.send <- message:
		default:
		}
	}
}

// BroadcastExceptID is BroadcastExcept keyed by session id, for callers that
// only carry the originator id (the rabbit consumer). An unknown or empty id
// delivers to everyone.
func (h *SessionHub) BroadcastExceptID(originID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions {
		if originID != "" && session.ID == originID {
			continue
		}
		select {
		case session.send <- message:
		default:
		}
	}
}

// Rooms group sessions for topic-scoped delivery. The feed mutation flows
// broadcast to the whole population and do not use them.
func (h *SessionHub) JoinRoom(room string, session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[session] = struct{}{}
}

func (h *SessionHub) LeaveRoom(room string, session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	delete(members, session)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *SessionHub) BroadcastRoom(room string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.rooms[room] {
		select {
		case session.send <- message:
		default:
		}
	}
}

var GlobalSessionHub = NewSessionHub()
