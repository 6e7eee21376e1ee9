package handler

import (
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName is the cookie that carries the operator's viewing session.
const SessionName = "fsm_intake_session"

// NewSessionStore creates a new cookie store for sessions
func NewSessionStore(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30, // 30 days
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
