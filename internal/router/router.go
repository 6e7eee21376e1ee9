package router

import (
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"fsm-intake/internal/handler"
	"fsm-intake/internal/logger"
	"fsm-intake/internal/metrics"
	"fsm-intake/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	SessionStore   sessions.Store
}

// SetupMiddleware installs the middleware chain shared by every route.
func SetupMiddleware(e *echo.Echo, opts Options, appLogger *logger.Logger) {
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				appLogger.Warnf("%s %s -> %d in %s (request_id=%s): %v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			appLogger.Debugf("%s %s -> %d in %s (request_id=%s)", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{echo.GET, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders:     []string{echo.HeaderContentType, middleware.SessionHeader},
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
	}))
	e.Use(metrics.Middleware())
	e.Use(middleware.SessionMiddleware(opts.SessionStore, handler.SessionName, appLogger))
}

func SetupRoutes(
	e *echo.Echo,
	intakeHandler *handler.IntakeHandler,
	emailHandler *handler.EmailHandler,
) {
	e.GET("/health", emailHandler.Health)
	e.GET("/metrics", metrics.Handler())

	// Workflow intake
	e.POST("/api/webhook", intakeHandler.ReceiveEmail)

	api := e.Group("/api")

	// Record queries; /webhook/get-emails is kept for existing workflow setups
	api.GET("/get-emails", emailHandler.ListEmails)
	api.GET("/get-emails/:id", emailHandler.GetEmail)
	e.GET("/webhook/get-emails", emailHandler.ListEmails)
	e.GET("/webhook/get-emails/:id", emailHandler.GetEmail)

	api.DELETE("/delete-email", emailHandler.DeleteEmail)
	api.DELETE("/emails/clear", emailHandler.ClearEmails)
	api.DELETE("/emails/:id", emailHandler.DeleteEmail)

	// Operator review
	api.GET("/emails/:id/review", emailHandler.ReviewEmail)
	api.POST("/emails/:id/reply", emailHandler.SendReply)
	api.POST("/emails/:id/reprocess", emailHandler.ReprocessEmail)
	api.GET("/dashboard", emailHandler.Dashboard)

	// Real-time record updates via Server-Sent Events (SSE)
	api.GET("/events", emailHandler.EmailEvents)
}
