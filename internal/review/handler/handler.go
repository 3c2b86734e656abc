// Package handler provides HTTP handlers for maintainer review endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
	reviewModel "github.com/festy23/contribution_engine/internal/review/model"
	"github.com/festy23/contribution_engine/internal/review/service"
)

// Handler handles HTTP requests for review endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new review handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// SubmitAction handles POST /reviews/action request.
// @Summary Record a maintainer review verdict
// @Tags Reviews
// @Accept json
// @Produce json
// @Param request body reviewModel.SubmitActionRequest true "Request"
// @Success 201 {object} reviewModel.SubmitResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Reviewer suspended"
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Pull request merged or closed"
// @Router /reviews/action [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) SubmitAction(c *gin.Context) {
	var req reviewModel.SubmitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.SubmitAction(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, "error submitting review action", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ResolveConflict handles POST /reviews/resolve request.
// @Summary Re-evaluate the review outcome of a pull request
// @Tags Reviews
// @Accept json
// @Produce json
// @Param request body reviewModel.ResolveRequest true "Request"
// @Success 200 {object} reviewModel.Resolution
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /reviews/resolve [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ResolveConflict(c *gin.Context) {
	var req reviewModel.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ResolveConflict(c.Request.Context(), req.PullRequestID)
	if err != nil {
		h.fail(c, "error resolving review conflict", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OwnerOverride handles POST /reviews/override request.
// @Summary Finalize a review outcome as the project owner
// @Tags Reviews
// @Accept json
// @Produce json
// @Param request body reviewModel.OverrideRequest true "Request"
// @Success 200 {object} reviewModel.Resolution
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Not the project owner"
// @Failure 404 {object} ErrorResponse
// @Router /reviews/override [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) OwnerOverride(c *gin.Context) {
	var req reviewModel.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.OwnerOverride(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, "error applying owner override", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetConflict handles GET /reviews/conflicts/:prId request.
// @Summary Get the newest review conflict of a pull request
// @Tags Reviews
// @Produce json
// @Param prId path string true "Pull request ID"
// @Success 200 {object} reviewModel.Conflict
// @Failure 404 {object} ErrorResponse
// @Router /reviews/conflicts/{prId} [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetConflict(c *gin.Context) {
	resp, err := h.service.GetConflict(c.Request.Context(), c.Param("prId"))
	if err != nil {
		h.fail(c, "error getting review conflict", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, reviewModel.ErrInvalidAction),
		errors.Is(err, reviewModel.ErrInvalidRating),
		errors.Is(err, pullrequestModel.ErrInvalidPullRequestID):
		errorResponse(c, "INVALID_REQUEST", err.Error(), http.StatusBadRequest)
	case errors.Is(err, reviewModel.ErrReviewerSuspended):
		errorResponse(c, "REVIEWER_SUSPENDED", err.Error(), http.StatusForbidden)
	case errors.Is(err, reviewModel.ErrNotProjectOwner):
		errorResponse(c, "NOT_PROJECT_OWNER", err.Error(), http.StatusForbidden)
	case errors.Is(err, pullrequestModel.ErrPullRequestNotFound):
		errorResponse(c, "NOT_FOUND", "pull request not found", http.StatusNotFound)
	case errors.Is(err, reviewModel.ErrConflictNotFound):
		errorResponse(c, "NOT_FOUND", "review conflict not found", http.StatusNotFound)
	case errors.Is(err, reviewModel.ErrPullRequestFinalized):
		errorResponse(c, "PR_FINALIZED", err.Error(), http.StatusConflict)
	default:
		h.logger.Errorw(msg, "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	}
}
