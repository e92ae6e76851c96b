package session

import (
	"net/http"
	"time"
)

// CookieName is the session cookie issued to browsers.
const CookieName = "taskbrew_session"

// SetCookie issues the session cookie. HttpOnly keeps it away from page
// scripts; SameSite=Lax; Secure only when the deployment serves HTTPS.
func SetCookie(w http.ResponseWriter, value string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie instructs the client to discard the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
