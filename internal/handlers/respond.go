package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/taskbrew/taskbrew-backend/internal/database"
	"github.com/taskbrew/taskbrew-backend/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps persistence failures onto the API's error
// taxonomy. Unexpected errors are logged with their detail here and
// reported to the caller as the generic fallback, never with driver text.
func writeStoreError(w http.ResponseWriter, err error, notFoundMsg, fallback string) {
	switch {
	case errors.Is(err, database.ErrUnavailable):
		log.Printf("database unavailable: %v", err)
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMsg)
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
