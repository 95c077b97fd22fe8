package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// session is one connected client. The subscription set is owned by the
// session and mutated only from its own read loop, but the heartbeat and
// broadcast loops read it, so it stays behind a mutex.
type session struct {
	id   string
	conn *websocket.Conn

	// alive is cleared before each ping and set again by the pong handler.
	// A session still false at the next heartbeat tick is terminated.
	alive atomic.Bool

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]struct{}
}

func newSession(id string, conn *websocket.Conn) *session {
	s := &session{
		id:   id,
		conn: conn,
		subs: make(map[string]struct{}),
	}
	s.alive.Store(true)
	return s
}

// send writes a frame, serializing writers: the read loop, heartbeat and
// broadcast loops all write to the same connection.
func (s *session) send(frame serverFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(frame)
}

// ping sends a control ping. Control frames may interleave with data frames,
// so no write lock is needed.
func (s *session) ping(deadline time.Time) error {
	return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (s *session) subscribe(key string) {
	s.mu.Lock()
	s.subs[key] = struct{}{}
	s.mu.Unlock()
}

func (s *session) unsubscribe(key string) {
	s.mu.Lock()
	delete(s.subs, key)
	s.mu.Unlock()
}

func (s *session) subscribed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[key]
	return ok
}

func (s *session) subscriptionKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	return keys
}
