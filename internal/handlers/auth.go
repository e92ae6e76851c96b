package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/taskbrew/taskbrew-backend/internal/middleware"
	"github.com/taskbrew/taskbrew-backend/internal/models"
	"github.com/taskbrew/taskbrew-backend/internal/services"
	"github.com/taskbrew/taskbrew-backend/internal/session"
	"github.com/taskbrew/taskbrew-backend/internal/store"
	"github.com/taskbrew/taskbrew-backend/pkg/utils"
)

// UserDirectory is the slice of the user store the auth handlers need.
type UserDirectory interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	RecordLogin(ctx context.Context, id string, rememberMe bool) error
	UpdateSettings(ctx context.Context, id string, changes store.SettingsChanges) (*models.User, error)
}

// Verifier validates a credential pair against stored identities.
type Verifier interface {
	Verify(ctx context.Context, email, password string) (*models.User, error)
}

// AuthHandler serves registration, login, logout and auth-status.
type AuthHandler struct {
	Users    UserDirectory
	Verifier Verifier
	Sessions *session.Manager
}

func NewAuthHandler(users UserDirectory, verifier Verifier, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{Users: users, Verifier: verifier, Sessions: sessions}
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Register creates a new identity. Email uniqueness is ultimately decided
// by the storage layer, so two concurrent registrations for the same
// address cannot both succeed.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		log.Printf("error hashing password: %v", err)
		writeError(w, http.StatusInternalServerError, "Server error while registering user")
		return
	}

	user := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email, // normalized by the store
		PasswordHash: passwordHash,
		Settings:     models.DefaultUserSettings(),
	}

	if err := h.Users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, "Email already exists")
			return
		}
		writeStoreError(w, err, "Not found", "Server error while registering user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Login verifies credentials and establishes a session. The session id is
// always freshly generated here — any id the client showed up with is
// dead after this call.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Verifier.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		writeStoreError(w, err, "Not found", "Server error while logging in")
		return
	}

	if _, err := h.Sessions.Issue(r.Context(), w, r, user.ID.Hex(), req.RememberMe); err != nil {
		log.Printf("error issuing session: %v", err)
		writeError(w, http.StatusInternalServerError, "Server error while logging in")
		return
	}

	if err := h.Users.RecordLogin(r.Context(), user.ID.Hex(), req.RememberMe); err != nil {
		// Login stands; the stamp is bookkeeping.
		log.Printf("error recording login time: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged in successfully",
		"user":    user.Summary(),
	})
}

// Logout tears down the session. Always answers success: logging out of
// an already-dead session is not a failure the client can act on.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Destroy(r.Context(), w, r); err != nil {
		log.Printf("error destroying session: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// AuthStatus reports whether the request carries a live session. Never
// errors; an unreadable session just reads as logged out.
func (h *AuthHandler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"loggedIn": false})
		return
	}

	user, err := h.Users.FindByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"loggedIn": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loggedIn": true,
		"user":     user.Summary(),
	})
}
