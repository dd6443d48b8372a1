package assistant

import (
	"strings"
	"sync"
	"time"
)

const DefaultSessionID = "default"

// Session pairs the controller and agent that share one conversation.
type Session struct {
	ID         string
	Controller *Controller
	Agent      *Agent
}

// SessionFactory builds the state for a session on first use.
type SessionFactory func(id string) (*Session, error)

// SessionsOption configures a Sessions registry.
type SessionsOption func(*Sessions)

// WithSessionLimit caps the number of live sessions. When a new session would
// exceed the cap the least recently used one is dropped. n <= 0 means no cap.
func WithSessionLimit(n int) SessionsOption {
	return func(s *Sessions) { s.limit = n }
}

// WithSessionIdleTTL drops sessions not used for longer than ttl. Expired
// sessions are swept whenever a new session is created. ttl <= 0 disables it.
func WithSessionIdleTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) { s.idleTTL = ttl }
}

func withSessionClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) { s.now = now }
}

type sessionEntry struct {
	sess     *Session
	lastUsed time.Time
}

// Sessions is the registry of live conversations keyed by session id.
type Sessions struct {
	factory SessionFactory
	limit   int
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*sessionEntry
}

func NewSessions(factory SessionFactory, opts ...SessionsOption) *Sessions {
	s := &Sessions{factory: factory, now: time.Now, items: map[string]*sessionEntry{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session for id, creating it when missing or expired. A
// blank id selects DefaultSessionID.
func (s *Sessions) Get(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.items[id]; ok && !s.expired(e, now) {
		e.lastUsed = now
		return e.sess, nil
	}
	sess, err := s.factory(id)
	if err != nil {
		return nil, err
	}
	delete(s.items, id)
	s.evict(now)
	s.items[id] = &sessionEntry{sess: sess, lastUsed: now}
	return sess, nil
}

func (s *Sessions) expired(e *sessionEntry, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(e.lastUsed) > s.idleTTL
}

// evict makes room for one more session. Callers hold mu.
func (s *Sessions) evict(now time.Time) {
	if s.idleTTL > 0 {
		for id, e := range s.items {
			if s.expired(e, now) {
				delete(s.items, id)
			}
		}
	}
	for s.limit > 0 && len(s.items) >= s.limit {
		var oldest string
		var at time.Time
		for id, e := range s.items {
			if oldest == "" || e.lastUsed.Before(at) {
				oldest, at = id, e.lastUsed
			}
		}
		delete(s.items, oldest)
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
