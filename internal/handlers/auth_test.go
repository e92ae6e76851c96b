package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/taskbrew/taskbrew-backend/internal/middleware"
	"github.com/taskbrew/taskbrew-backend/internal/models"
	"github.com/taskbrew/taskbrew-backend/internal/services"
	"github.com/taskbrew/taskbrew-backend/internal/session"
	"github.com/taskbrew/taskbrew-backend/internal/store"
)

// --- fakes ---

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

// memUsers backs both UserDirectory and the credential verifier's lookup,
// enforcing the same normalized-email uniqueness the real store gets from
// its index.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User // keyed by normalized email
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*models.User)}
}

func (m *memUsers) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := store.NormalizeEmail(u.Email)
	if _, exists := m.users[email]; exists {
		return store.ErrDuplicateEmail
	}
	u.ID = primitive.NewObjectID()
	u.Email = email
	u.CreatedAt = time.Now()
	m.users[email] = u
	return nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[store.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID.Hex() == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) RecordLogin(ctx context.Context, id string, rememberMe bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID.Hex() == id {
			now := time.Now()
			u.LastLoginAt = &now
			u.Settings.RememberMe = rememberMe
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memUsers) UpdateSettings(ctx context.Context, id string, changes store.SettingsChanges) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID.Hex() == id {
			if changes.DailyEmail != nil {
				u.Settings.DailyEmail = *changes.DailyEmail
			}
			if changes.WeeklyEmail != nil {
				u.Settings.WeeklyEmail = *changes.WeeklyEmail
			}
			if changes.Timezone != nil {
				u.Settings.Timezone = *changes.Timezone
			}
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

// --- harness ---

type authAPI struct {
	router   *chi.Mux
	users    *memUsers
	sessions *session.Manager
}

func newAuthAPI(t *testing.T) *authAPI {
	t.Helper()
	users := newMemUsers()
	sessions := session.NewManager(newMemSessionStore(), session.NewCodec("test-secret"), false)
	h := NewAuthHandler(users, services.NewCredentialVerifier(users), sessions)
	auth := middleware.NewAuth(sessions)

	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.With(auth.Optional).Get("/auth-status", h.AuthStatus)
	r.Group(func(r chi.Router) {
		r.Use(auth.Require)
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)
	})

	return &authAPI{router: r, users: users, sessions: sessions}
}

func (a *authAPI) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *authAPI) register(t *testing.T, email, password string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/register", map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (a *authAPI) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	w := a.do(t, http.MethodPost, "/login", map[string]interface{}{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

// --- tests ---

func TestRegisterValidation(t *testing.T) {
	api := newAuthAPI(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"firstName": "A", "lastName": "B", "password": "p"}},
		{"missing password", map[string]string{"firstName": "A", "lastName": "B", "email": "a@x.com"}},
		{"blank first name", map[string]string{"firstName": "  ", "lastName": "B", "email": "a@x.com", "password": "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRegisterDuplicateEmailAnyCasing(t *testing.T) {
	api := newAuthAPI(t)
	api.register(t, "a@x.com", "p1")

	w := api.do(t, http.MethodPost, "/register", map[string]string{
		"firstName": "Eve", "lastName": "Mallory", "email": "A@X.com", "password": "p2",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email already exists")
}

func TestLoginCaseInsensitiveEmail(t *testing.T) {
	api := newAuthAPI(t)
	api.register(t, "a@x.com", "p1")

	// Same address, different casing, same password.
	cookie := api.login(t, "A@X.com", "p1")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestLoginBadCredentialsAreGeneric(t *testing.T) {
	api := newAuthAPI(t)
	api.register(t, "a@x.com", "p1")

	unknown := api.do(t, http.MethodPost, "/login", map[string]string{"email": "ghost@x.com", "password": "p1"})
	wrong := api.do(t, http.MethodPost, "/login", map[string]string{"email": "a@x.com", "password": "nope"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	// Same body for both failure modes: no oracle for which part was wrong.
	assert.JSONEq(t, unknown.Body.String(), wrong.Body.String())
}

func TestLoginRecordsLastLogin(t *testing.T) {
	api := newAuthAPI(t)
	api.register(t, "a@x.com", "p1")
	api.login(t, "a@x.com", "p1")

	u, err := api.users.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotNil(t, u.LastLoginAt)
}

func TestLogoutIsIdempotent(t *testing.T) {
	api := newAuthAPI(t)
	api.register(t, "a@x.com", "p1")
	cookie := api.login(t, "a@x.com", "p1")

	first := api.do(t, http.MethodPost, "/logout", nil, cookie)
	second := api.do(t, http.MethodPost, "/logout", nil, cookie)
	bare := api.do(t, http.MethodPost, "/logout", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, http.StatusOK, bare.Code)
}

func TestAuthStatus(t *testing.T) {
	api := newAuthAPI(t)
	api.register(t, "a@x.com", "p1")

	t.Run("logged out", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/auth-status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["loggedIn"])
		assert.NotContains(t, body, "user")
	})

	t.Run("logged in", func(t *testing.T) {
		cookie := api.login(t, "a@x.com", "p1")
		w := api.do(t, http.MethodGet, "/auth-status", nil, cookie)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			LoggedIn bool `json:"loggedIn"`
			User     struct {
				Email     string `json:"email"`
				FirstName string `json:"firstName"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.LoggedIn)
		assert.Equal(t, "a@x.com", body.User.Email)
	})

	t.Run("after logout", func(t *testing.T) {
		cookie := api.login(t, "a@x.com", "p1")
		api.do(t, http.MethodPost, "/logout", nil, cookie)
		w := api.do(t, http.MethodGet, "/auth-status", nil, cookie)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["loggedIn"])
	})
}

func TestSettingsRoundTrip(t *testing.T) {
	api := newAuthAPI(t)
	api.register(t, "a@x.com", "p1")
	cookie := api.login(t, "a@x.com", "p1")

	w := api.do(t, http.MethodGet, "/settings", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var settings models.UserSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.True(t, settings.DailyEmail)
	assert.Equal(t, "America/Jamaica", settings.Timezone)

	w = api.do(t, http.MethodPut, "/settings", map[string]interface{}{
		"dailyEmail": false, "timezone": "Europe/Berlin",
	}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.False(t, settings.DailyEmail)
	assert.True(t, settings.WeeklyEmail, "unsupplied fields stay untouched")
	assert.Equal(t, "Europe/Berlin", settings.Timezone)

	w = api.do(t, http.MethodPut, "/settings", map[string]interface{}{"timezone": "  "}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/settings", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
