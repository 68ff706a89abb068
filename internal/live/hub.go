package live

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/ignite/phishguard/internal/pkg/logger"
)

// Authenticator validates the credential presented at connect time and
// returns the session's user ID.
type Authenticator func(r *http.Request) (string, bool)

// session is one connected client with a serialized write path.
type session struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (s *session) send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return websocket.JSON.Send(s.conn, msg)
}

// Hub fans live-update frames out to connected dashboard sessions.
// Sessions subscribe to named channels; broadcasts go only to
// subscribers of the addressed channel.
type Hub struct {
	auth Authenticator

	mu       sync.RWMutex
	sessions map[*session]map[string]bool

	log *logger.Logger
}

// NewHub creates a hub. With a nil authenticator every connection is
// accepted as anonymous, which is only suitable for tests.
func NewHub(auth Authenticator) *Hub {
	return &Hub{
		auth:     auth,
		sessions: make(map[*session]map[string]bool),
		log:      logger.Component("live-hub"),
	}
}

// Handler returns the websocket endpoint handler.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn)
	})
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer conn.Close()

	userID := "anonymous"
	if h.auth != nil {
		req := conn.Request()
		id, ok := h.auth(req)
		if !ok {
			websocket.JSON.Send(conn, Message{Type: MsgError, Error: "unauthorized"})
			return
		}
		userID = id
	}

	sess := &session{userID: userID, conn: conn}
	h.mu.Lock()
	h.sessions[sess] = make(map[string]bool)
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, sess)
		h.mu.Unlock()
	}()

	sess.send(Message{Type: MsgConnection, Timestamp: time.Now().UTC()})
	h.log.Info("session connected", "user", userID)

	for {
		var msg Message
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return
		}

		switch msg.Type {
		case MsgSubscribe:
			if msg.Channel == "" {
				sess.send(Message{Type: MsgError, Error: "channel is required"})
				continue
			}
			h.mu.Lock()
			h.sessions[sess][msg.Channel] = true
			h.mu.Unlock()
			sess.send(Message{Type: MsgSubscribed, Channel: msg.Channel, Timestamp: time.Now().UTC()})

		case MsgPing:
			sess.send(Message{Type: MsgPong, Timestamp: time.Now().UTC()})

		default:
			sess.send(Message{Type: MsgError, Error: "unsupported frame type"})
		}
	}
}

// Broadcast sends a frame to every session subscribed to the channel.
// Slow or broken sessions drop the frame; the read loop reaps them.
func (h *Hub) Broadcast(channel string, msg Message) {
	msg.Channel = channel
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	var targets []*session
	for sess, subs := range h.sessions {
		if subs[channel] {
			targets = append(targets, sess)
		}
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.send(msg); err != nil {
			h.log.Debug("broadcast dropped", "user", sess.userID, "error", err)
		}
	}
}

// Sessions returns the current session count.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
