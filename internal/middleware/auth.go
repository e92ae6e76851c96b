package middleware

import (
	"context"
	"net/http"

	"github.com/taskbrew/taskbrew-backend/internal/session"
)

// unexported, collision-proof context key
type userIDContextKeyType struct{}

var userIDKey = userIDContextKeyType{}

// UserID extracts the authenticated user id from the request context.
// Only set by Auth.Require / Auth.Optional.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// Auth gates routes on a valid session. Every data handler behind
// Require must scope its queries to the id this middleware attaches;
// there is no authenticated request without one.
type Auth struct {
	Sessions *session.Manager
}

func NewAuth(sessions *session.Manager) *Auth {
	return &Auth{Sessions: sessions}
}

// Require rejects requests without a live session before any handler
// logic runs. Failures are a generic 401: a missing cookie, a forged one
// and an expired record all look identical to the caller.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := a.Sessions.Resolve(r.Context(), r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Unauthorized - Please log in"}`))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, s.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the user id when a live session is present and does
// nothing otherwise. Never errors; /auth-status builds on this.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, err := a.Sessions.Resolve(r.Context(), r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, s.UserID))
		}
		next.ServeHTTP(w, r)
	})
}
