// Package handler provides the HTTP entry point for verified abstract events.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	pipelineModel "github.com/festy23/contribution_engine/internal/pipeline/model"
	"github.com/festy23/contribution_engine/internal/pipeline/service"
)

// Handler handles HTTP requests for event submission.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new pipeline handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// SubmitEvent handles POST /events request.
// @Summary Admit and process a verified pull request event
// @Tags Events
// @Accept json
// @Produce json
// @Param request body eventModel.InboundEvent true "Event"
// @Success 200 {object} pipelineModel.Outcome "Duplicate delivery"
// @Success 202 {object} pipelineModel.Outcome "New event processed"
// @Failure 400 {object} ErrorResponse "Body is not JSON"
// @Failure 422 {object} pipelineModel.Outcome "Event rejected"
// @Failure 500 {object} ErrorResponse
// @Router /events [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) SubmitEvent(c *gin.Context) {
	var ev eventModel.InboundEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}

	out, err := h.service.Process(c.Request.Context(), &ev)
	if err != nil {
		h.logger.Errorw("error processing event", "kind", ev.Kind, "delivery_id", ev.DeliveryID, "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(StatusFor(out), out)
}

// StatusFor maps an outcome to its HTTP status.
func StatusFor(out *pipelineModel.Outcome) int {
	switch out.Admission.Status {
	case eventModel.AcceptedNew:
		return http.StatusAccepted
	case eventModel.Rejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}
