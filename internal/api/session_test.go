package api

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	ss := NewSessionStore(time.Hour)

	token, err := ss.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !ss.Valid(token) {
		t.Error("fresh session not valid")
	}
	if ss.Valid("") || ss.Valid("bogus") {
		t.Error("invalid tokens accepted")
	}

	ss.Revoke(token)
	if ss.Valid(token) {
		t.Error("revoked session still valid")
	}
}

func TestSessionExpiry(t *testing.T) {
	ss := NewSessionStore(time.Minute)
	now := time.Now()
	ss.now = func() time.Time { return now }

	token, err := ss.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if ss.Valid(token) {
		t.Error("expired session still valid")
	}
}

func TestSessionTokensUnique(t *testing.T) {
	ss := NewSessionStore(time.Hour)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := ss.Create()
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token after %d creates", i)
		}
		seen[token] = true
	}
}
