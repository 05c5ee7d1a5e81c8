package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid"
)

const sessionCookieName = "sessionid"

// Session as issued on login or first visit. A user may hold several
// concurrently, one per tab or device, each with its own identifier.
// An anonymous session has an empty Username and no roles.
type Session struct {
	ID        string
	Username  string
	Roles     []int64
	CreatedAt time.Time
}

// SessionDirectory is the read side the fan-out path depends on. It
// answers one question: which sessions are active right now, and who
// owns them. Enumeration returns a snapshot; sessions may come and go
// before the caller acts on it.
type SessionDirectory interface {
	EnumerateActiveSessions() ([]Session, error)
}

// SessionStore keeps sessions in process memory. Losing them on restart
// only forces a re-login, so nothing here is persisted.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Session)}
}

// Issue creates a fresh session for the given identity. An empty
// username issues an anonymous session.
func (s *SessionStore) Issue(username string, roles []int64) (Session, error) {
	id, err := gonanoid.Nanoid()
	if err != nil {
		return Session{}, fmt.Errorf("could not generate session id: %w", err)
	}

	sess := Session{
		ID:        id,
		Username:  username,
		Roles:     roles,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return sess, nil
}

func (s *SessionStore) Lookup(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Destroy removes the session if present; unknown ids are a no-op.
func (s *SessionStore) Destroy(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// EnumerateActiveSessions returns a copy of every active session.
func (s *SessionStore) EnumerateActiveSessions() ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) error {
	value, err := cookieSigner.Encode(sessionCookieName, sessionID)
	if err != nil {
		return fmt.Errorf("could not encode session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func sessionFromRequest(r *http.Request) (Session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return Session{}, false
	}

	var sessionID string
	if err := cookieSigner.Decode(sessionCookieName, cookie.Value, &sessionID); err != nil {
		return Session{}, false
	}

	return sessionStore.Lookup(sessionID)
}
