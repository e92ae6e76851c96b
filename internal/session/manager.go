package session

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Manager turns a verified identity into a session and back. It owns the
// cookie policy: rotation on login, remember-me lifetimes, idempotent
// logout.
type Manager struct {
	store  Store
	codec  Codec
	secure bool
	now    func() time.Time
}

// NewManager wires a Manager. secure controls the cookie's Secure
// attribute and should be true in production (HTTPS) deployments.
func NewManager(store Store, codec Codec, secure bool) *Manager {
	return &Manager{store: store, codec: codec, secure: secure, now: time.Now}
}

// Issue establishes a session for userID and sets the cookie on w.
//
// Any session the request already presents is destroyed first and the new
// session gets a freshly generated identifier, so an attacker who
// pre-seeded a session id before the victim logged in holds a dead token
// (session fixation defense).
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string, rememberMe bool) (*Session, error) {
	if old := m.presentedID(r); old != "" {
		if err := m.store.Delete(ctx, old); err != nil {
			log.Printf("failed to discard pre-login session: %v", err)
		}
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	lifetime := DefaultDuration
	if rememberMe {
		lifetime = RememberMeDuration
	}

	now := m.now()
	s := Session{
		ID:         id,
		UserID:     userID,
		RememberMe: rememberMe,
		CreatedAt:  now,
		ExpiresAt:  now.Add(lifetime),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}

	SetCookie(w, m.codec.Encode(id), s.ExpiresAt, m.secure)
	return &s, nil
}

// Destroy tears down whatever session the request presents and clears the
// cookie. An absent, expired or tampered session is not an error: logout
// is idempotent.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if id := m.presentedID(r); id != "" {
		err = m.store.Delete(ctx, id)
	}
	ClearCookie(w, m.secure)
	return err
}

// Resolve returns the live session attached to the request, or
// ErrNoSession. Expired records are deleted on sight.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	id := m.presentedID(r)
	if id == "" {
		return nil, ErrNoSession
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return nil, ErrNoSession
	}
	return s, nil
}

// presentedID extracts and verifies the session id from the request
// cookie. Empty when there is nothing usable.
func (m *Manager) presentedID(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	id, err := m.codec.Decode(cookie.Value)
	if err != nil {
		return ""
	}
	return id
}
