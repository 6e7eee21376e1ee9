package middleware

import (
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"fsm-intake/internal/logger"
)

const (
	// SessionHeader lets non-browser clients name their session explicitly.
	SessionHeader = "X-Session-ID"

	sessionIDKey = "session_id"
)

// SessionMiddleware gives every request a stable viewing-session id, stored
// in a signed cookie and exposed through SessionID.
func SessionMiddleware(store sessions.Store, name string, logger *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get(SessionHeader); id != "" {
				c.Set(sessionIDKey, id)
				return next(c)
			}

			// A cookie signed with an old secret yields an error and a fresh session
			session, _ := store.Get(c.Request(), name)
			id, ok := session.Values[sessionIDKey].(string)
			if !ok || id == "" {
				id = uuid.NewString()
				session.Values[sessionIDKey] = id
				if err := session.Save(c.Request(), c.Response()); err != nil {
					logger.Warnf("Failed to save session cookie: %v", err)
				}
			}

			c.Set(sessionIDKey, id)
			return next(c)
		}
	}
}

// SessionID returns the id set by SessionMiddleware, or "" outside it.
func SessionID(c echo.Context) string {
	id, _ := c.Get(sessionIDKey).(string)
	return id
}
