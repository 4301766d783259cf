package api

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const sessionCookieName = "retext_session"

// SessionStore holds opaque session tokens in memory. Sessions do not survive
// a restart, which is acceptable for a single-user tool: logging in again is
// cheap, persisting tokens is not worth the liability.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a session store with the given TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create issues a new random session token.
func (ss *SessionStore) Create() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.pruneLocked()
	ss.sessions[token] = ss.now().Add(ss.ttl)
	return token, nil
}

// Valid reports whether token identifies a live session.
func (ss *SessionStore) Valid(token string) bool {
	if token == "" {
		return false
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	expiry, ok := ss.sessions[token]
	if !ok {
		return false
	}
	if ss.now().After(expiry) {
		delete(ss.sessions, token)
		return false
	}
	return true
}

// Revoke removes a session.
func (ss *SessionStore) Revoke(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// pruneLocked drops expired sessions. Caller holds the lock.
func (ss *SessionStore) pruneLocked() {
	now := ss.now()
	for token, expiry := range ss.sessions {
		if now.After(expiry) {
			delete(ss.sessions, token)
		}
	}
}
