package middleware

import (
	"log"
	"net/http"

	"github.com/taskbrew/taskbrew-backend/internal/database"
)

// RequireDatabase fails a request fast with 503 when the backing store
// cannot be reached. The connection manager memoizes the attempt, so
// under load this is a cheap check once the handle is established, and
// the next request after a failure triggers a fresh dial.
func RequireDatabase(db *database.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := db.EnsureConnected(r.Context()); err != nil {
				log.Printf("database unavailable for request: %v", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"Service temporarily unavailable"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
