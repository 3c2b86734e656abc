// Package handler provides HTTP handlers for pullrequest endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
	"github.com/festy23/contribution_engine/internal/pullrequest/service"
)

// Handler handles HTTP requests for pullrequest endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new pullrequest handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// GetPullRequest handles GET /pullRequests/:id request.
// @Summary Get pull request status, score and scoring metadata
// @Tags PullRequests
// @Produce json
// @Param id path string true "Pull request ID"
// @Success 200 {object} pullrequestModel.PullRequestResponse
// @Failure 404 {object} ErrorResponse "Pull request not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /pullRequests/{id} [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetPullRequest(c *gin.Context) {
	resp, err := h.service.GetPullRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pullrequestModel.ErrPullRequestNotFound) {
			errorResponse(c, "NOT_FOUND", "pull request not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, pullrequestModel.ErrInvalidPullRequestID) {
			errorResponse(c, "INVALID_REQUEST", "pull request id is required", http.StatusBadRequest)
			return
		}
		h.logger.Errorw("error getting pull request", "id", c.Param("id"), "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, resp)
}
