package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/logger"
	"fsm-intake/internal/middleware"
	"fsm-intake/internal/repository"
	"fsm-intake/internal/service"
	"fsm-intake/internal/sse"
	"fsm-intake/internal/workflow"
)

type EmailHandler struct {
	inboxService  service.InboxService
	intakeService service.IntakeService
	replyService  service.ReplyService
	sseManager    *sse.SSEManager
	logger        *logger.Logger
}

func NewEmailHandler(
	inboxService service.InboxService,
	intakeService service.IntakeService,
	replyService service.ReplyService,
	sseManager *sse.SSEManager,
	logger *logger.Logger,
) *EmailHandler {
	return &EmailHandler{
		inboxService:  inboxService,
		intakeService: intakeService,
		replyService:  replyService,
		sseManager:    sseManager,
		logger:        logger,
	}
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

// ListEmails returns every retained record, newest first.
func (h *EmailHandler) ListEmails(c echo.Context) error {
	emails, err := h.inboxService.ListEmails(c.Request().Context())
	if err != nil {
		h.logger.Errorf("Failed to list emails: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to get emails")
	}

	h.logger.Debugf("Fetching %d emails", len(emails))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"emails": emails,
	})
}

func (h *EmailHandler) GetEmail(c echo.Context) error {
	email, err := h.inboxService.GetEmail(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repository.ErrEmailNotFound) {
		return errorJSON(c, http.StatusNotFound, "Email not found")
	}
	if err != nil {
		h.logger.Errorf("Failed to get email: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to get email")
	}
	return c.JSON(http.StatusOK, email)
}

// DeleteEmail removes one record. The id comes from the path or the "id"
// query parameter.
func (h *EmailHandler) DeleteEmail(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		id = c.QueryParam("id")
	}
	if strings.TrimSpace(id) == "" {
		return errorJSON(c, http.StatusBadRequest, "Email ID is required")
	}

	removed, err := h.inboxService.DeleteEmail(c.Request().Context(), id)
	if err != nil {
		h.logger.Errorf("Failed to delete email: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Failed to delete email",
			"details": err.Error(),
		})
	}
	if !removed {
		return errorJSON(c, http.StatusNotFound, "Email not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Email deleted successfully",
		"id":      id,
	})
}

func (h *EmailHandler) ClearEmails(c echo.Context) error {
	cleared, err := h.inboxService.ClearEmails(c.Request().Context())
	if err != nil {
		h.logger.Errorf("Failed to clear emails: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to clear emails")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"cleared": cleared,
	})
}

// ReviewEmail returns the interpreted view of one email for the caller's session.
func (h *EmailHandler) ReviewEmail(c echo.Context) error {
	result, err := h.inboxService.ReviewEmail(c.Request().Context(), middleware.SessionID(c), c.Param("id"))
	if errors.Is(err, repository.ErrEmailNotFound) {
		return errorJSON(c, http.StatusNotFound, "Email not found")
	}
	if err != nil {
		h.logger.Errorf("Failed to review email: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to review email")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *EmailHandler) SendReply(c echo.Context) error {
	sessionID := middleware.SessionID(c)
	receipt, err := h.replyService.SendReply(c.Request().Context(), sessionID, c.Param("id"))
	switch {
	case err == nil:
		h.sseManager.SendToSession(sessionID, service.EventReplySent, receipt)
		return c.JSON(http.StatusOK, receipt)
	case errors.Is(err, repository.ErrEmailNotFound):
		return errorJSON(c, http.StatusNotFound, "Email not found")
	case errors.Is(err, service.ErrReplyDisabled):
		return errorJSON(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrNoReply), errors.Is(err, interpreter.ErrReplyAlreadySent):
		return errorJSON(c, http.StatusConflict, err.Error())
	default:
		h.logger.Errorf("Failed to send reply: %v", err)
		return errorJSON(c, http.StatusBadGateway, "Failed to send reply")
	}
}

// ReprocessEmail runs a stored email through the classification workflow again.
func (h *EmailHandler) ReprocessEmail(c echo.Context) error {
	email, err := h.intakeService.Reprocess(c.Request().Context(), c.Param("id"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, email)
	case errors.Is(err, repository.ErrEmailNotFound):
		return errorJSON(c, http.StatusNotFound, "Email not found")
	case errors.Is(err, workflow.ErrWorkflowDisabled), workflow.IsCircuitOpen(err):
		return errorJSON(c, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Errorf("Failed to reprocess email: %v", err)
		return errorJSON(c, http.StatusBadGateway, "Failed to reprocess email")
	}
}

func (h *EmailHandler) Dashboard(c echo.Context) error {
	dash, err := h.inboxService.Dashboard(c.Request().Context(), middleware.SessionID(c))
	if err != nil {
		h.logger.Errorf("Failed to build dashboard: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to build dashboard")
	}
	return c.JSON(http.StatusOK, dash)
}

func (h *EmailHandler) Health(c echo.Context) error {
	status := "ok"
	code := http.StatusOK
	count, err := h.inboxService.CountEmails(c.Request().Context())
	if err != nil {
		h.logger.Warnf("Health check could not reach the store: %v", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, map[string]interface{}{
		"status":     status,
		"emailCount": count,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// EmailEvents streams record changes as Server-Sent Events
func (h *EmailHandler) EmailEvents(c echo.Context) error {
	sessionID := middleware.SessionID(c)

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	clientChannel := h.sseManager.AddClient(sessionID)
	defer h.sseManager.RemoveClient(sessionID, clientChannel)

	initJSON, _ := json.Marshal(sse.Event{
		Type: "connection",
		Data: map[string]string{"sessionId": sessionID},
		Time: time.Now().Unix(),
	})
	fmt.Fprintf(c.Response(), "data: %s\n\n", initJSON)
	c.Response().Flush()

	for {
		select {
		case eventData, ok := <-clientChannel:
			if !ok {
				return nil
			}
			fmt.Fprintf(c.Response(), "data: %s\n\n", eventData)
			c.Response().Flush()
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
