package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"fsm-intake/internal/logger"
	"fsm-intake/internal/model"
	"fsm-intake/internal/service"
)

type IntakeHandler struct {
	intakeService service.IntakeService
	logger        *logger.Logger
}

func NewIntakeHandler(intakeService service.IntakeService, logger *logger.Logger) *IntakeHandler {
	return &IntakeHandler{
		intakeService: intakeService,
		logger:        logger,
	}
}

// ReceiveEmail accepts one classification result from the workflow and
// stores it, replacing any record with the same id.
func (h *IntakeHandler) ReceiveEmail(c echo.Context) error {
	var payload model.IntakePayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	h.logger.Infof("Received email from workflow (subject=%q, classification=%q)",
		payload.EmailData.Subject, payload.Output.Classification)

	email, created, err := h.intakeService.Receive(c.Request().Context(), &payload)
	if err != nil {
		h.logger.Errorf("Failed to process webhook: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      email.ID,
		"created": created,
		"message": "Email received and stored",
	})
}
