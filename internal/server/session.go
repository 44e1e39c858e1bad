package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionCookie is the cookie holding the session id.
const SessionCookie = "musix_sid"

// Session holds per-browser state such as OAuth state and tokens.
type Session struct {
	ID string

	mu       sync.Mutex
	values   map[string]any
	lastSeen time.Time // guarded by SessionStore.mu
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores v under key.
func (s *Session) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Delete removes key.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Pop returns and removes the value stored under key.
func (s *Session) Pop(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	delete(s.values, key)
	return v, ok
}

// SessionStore keeps sessions in memory, keyed by a random cookie value.
//
// Sessions idle for longer than the TTL are dropped by [SessionStore.Sweep].
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

// NewSessionStore creates a store whose sessions expire after ttl of inactivity.
func NewSessionStore(ttl time.Duration, secure bool) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		secure:   secure,
		now:      time.Now,
	}
}

// Load returns the session named by the request cookie, or nil.
func (st *SessionStore) Load(r *http.Request) *Session {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[c.Value]
	if !ok {
		return nil
	}
	if st.expired(sess) {
		delete(st.sessions, c.Value)
		return nil
	}
	sess.lastSeen = st.now()
	return sess
}

// Start returns the request's session, creating one and setting its cookie if needed.
func (st *SessionStore) Start(w http.ResponseWriter, r *http.Request) *Session {
	if sess := st.Load(r); sess != nil {
		return sess
	}

	sess := &Session{
		ID:       uuid.NewString(),
		values:   make(map[string]any),
		lastSeen: st.now(),
	}

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   st.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// Destroy removes the request's session and clears its cookie.
func (st *SessionStore) Destroy(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		st.mu.Lock()
		delete(st.sessions, c.Value)
		st.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, sess := range st.sessions {
		if st.expired(sess) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (st *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}

// expired must be called with st.mu held.
func (st *SessionStore) expired(sess *Session) bool {
	if st.ttl <= 0 {
		return false
	}
	return st.now().Sub(sess.lastSeen) > st.ttl
}
