// Package session implements cookie-addressed server-side sessions:
// random identifiers, an HMAC-signed cookie codec, a Redis-backed store,
// and the login/logout policy (rotation on login, remember-me lifetimes,
// idempotent teardown).
package session

import (
	"context"
	"errors"
	"time"
)

// Lifetimes mandated by the remember-me policy. Cookies are always
// bounded; there is no session-only cookie, so residual access from a
// shared device has a predictable cap.
const (
	RememberMeDuration = 14 * 24 * time.Hour
	DefaultDuration    = 24 * time.Hour
)

// ErrNoSession means the request carried no usable session: no cookie, a
// tampered cookie, an unknown identifier, or an expired record. Callers
// treat all of these identically.
var ErrNoSession = errors.New("no valid session")

// Session is the server-side record behind a cookie.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	RememberMe bool      `json:"remember_me"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the record has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists sessions in a durable store shared across restarts.
// Get returns (nil, nil) for an unknown identifier.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
