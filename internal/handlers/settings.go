package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/taskbrew/taskbrew-backend/internal/middleware"
	"github.com/taskbrew/taskbrew-backend/internal/store"
)

type UpdateSettingsRequest struct {
	DailyEmail  *bool   `json:"dailyEmail"`
	WeeklyEmail *bool   `json:"weeklyEmail"`
	Timezone    *string `json:"timezone"`
}

// GetSettings returns the caller's preferences.
func (h *AuthHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	user, err := h.Users.FindByID(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "Not found", "Server error while retrieving settings")
		return
	}
	writeJSON(w, http.StatusOK, user.Settings)
}

// UpdateSettings applies a partial preferences update and returns the
// full settings document.
func (h *AuthHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	changes := store.SettingsChanges{
		DailyEmail:  req.DailyEmail,
		WeeklyEmail: req.WeeklyEmail,
	}
	if req.Timezone != nil {
		tz := strings.TrimSpace(*req.Timezone)
		if tz == "" {
			writeError(w, http.StatusBadRequest, "Timezone cannot be empty")
			return
		}
		changes.Timezone = &tz
	}

	user, err := h.Users.UpdateSettings(r.Context(), userID, changes)
	if err != nil {
		writeStoreError(w, err, "Not found", "Server error while updating settings")
		return
	}
	writeJSON(w, http.StatusOK, user.Settings)
}
