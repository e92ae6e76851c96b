package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbrew/taskbrew-backend/internal/session"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]session.Session)}
}

func (m *memSessionStore) Create(ctx context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func newTestAuth(t *testing.T) (*Auth, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(newMemSessionStore(), session.NewCodec("test-secret"), false)
	return NewAuth(mgr), mgr
}

func sessionCookie(t *testing.T, mgr *session.Manager, userID string) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	_, err := mgr.Issue(context.Background(), w, r, userID, false)
	require.NoError(t, err)
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

// echoUserID records what the downstream handler saw.
func echoUserID(got *string, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if id, ok := UserID(r.Context()); ok {
			*got = id
		}
	})
}

func TestRequireWithValidSession(t *testing.T) {
	auth, mgr := newTestAuth(t)
	cookie := sessionCookie(t, mgr, "user-1")

	var got string
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	auth.Require(echoUserID(&got, &called)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, "user-1", got)
}

func TestRequireRejectsBeforeHandler(t *testing.T) {
	auth, mgr := newTestAuth(t)
	valid := sessionCookie(t, mgr, "user-1")
	tampered := &http.Cookie{Name: session.CookieName, Value: valid.Value + "x"}

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"tampered signature", tampered},
		{"unknown session id", &http.Cookie{Name: session.CookieName, Value: session.NewCodec("test-secret").Encode("nonexistent")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var called bool
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			auth.Require(echoUserID(&got, &called)).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called, "handler must not run without a session")
			assert.JSONEq(t, `{"error":"Unauthorized - Please log in"}`, w.Body.String())
		})
	}
}

func TestOptionalNeverBlocks(t *testing.T) {
	auth, mgr := newTestAuth(t)
	cookie := sessionCookie(t, mgr, "user-1")

	t.Run("with session", func(t *testing.T) {
		var got string
		var called bool
		req := httptest.NewRequest(http.MethodGet, "/auth-status", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		auth.Optional(echoUserID(&got, &called)).ServeHTTP(w, req)

		assert.True(t, called)
		assert.Equal(t, "user-1", got)
	})

	t.Run("without session", func(t *testing.T) {
		var got string
		var called bool
		req := httptest.NewRequest(http.MethodGet, "/auth-status", nil)
		w := httptest.NewRecorder()
		auth.Optional(echoUserID(&got, &called)).ServeHTTP(w, req)

		assert.True(t, called)
		assert.Empty(t, got)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestUserIDAbsent(t *testing.T) {
	id, ok := UserID(context.Background())
	assert.False(t, ok)
	assert.Empty(t, id)
}
