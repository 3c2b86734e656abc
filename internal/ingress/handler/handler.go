// Package handler provides the HTTP entry point for GitHub webhooks.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/contribution_engine/internal/ingress"
	pipelineHandler "github.com/festy23/contribution_engine/internal/pipeline/handler"
	"github.com/festy23/contribution_engine/internal/pipeline/service"
)

// IgnoredResponse acknowledges a delivery that is not scored.
type IgnoredResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Handler handles GitHub webhook deliveries.
type Handler struct {
	verifier *ingress.Verifier
	service  service.Service
	logger   *zap.SugaredLogger
}

// New creates a new webhook handler instance.
func New(verifier *ingress.Verifier, svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{verifier: verifier, service: svc, logger: logger}
}

// ReceiveGitHub handles POST /webhooks/github request.
// @Summary Verify and process a GitHub pull_request webhook delivery
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Hub-Signature-256 header string true "HMAC signature"
// @Param X-GitHub-Event header string true "Event type"
// @Success 200 {object} pipelineModel.Outcome "Duplicate delivery or ignored event"
// @Success 202 {object} pipelineModel.Outcome "New event processed"
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} pipelineModel.Outcome "Event rejected"
// @Failure 500 {object} ErrorResponse
// @Router /webhooks/github [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ReceiveGitHub(c *gin.Context) {
	ev, err := h.verifier.Verify(c.Request)
	switch {
	case errors.Is(err, ingress.ErrInvalidSignature):
		h.logger.Warnw("webhook signature rejected", "remote", c.ClientIP(), "error", err)
		errorResponse(c, "INVALID_SIGNATURE", "signature verification failed", http.StatusUnauthorized)
		return
	case errors.Is(err, ingress.ErrIgnored):
		h.logger.Debugw("webhook ignored", "reason", err.Error())
		c.JSON(http.StatusOK, IgnoredResponse{Status: "IGNORED", Reason: err.Error()})
		return
	case err != nil:
		h.logger.Errorw("error verifying webhook", "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	out, err := h.service.Process(c.Request.Context(), ev)
	if err != nil {
		h.logger.Errorw("error processing webhook", "kind", ev.Kind, "delivery_id", ev.DeliveryID, "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(pipelineHandler.StatusFor(out), out)
}
