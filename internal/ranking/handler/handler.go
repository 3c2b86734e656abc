// Package handler provides HTTP handlers for leaderboard endpoints.
package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/contribution_engine/internal/ranking/model"
	"github.com/festy23/contribution_engine/internal/ranking/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles HTTP requests for leaderboard endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new ranking handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// GetLeaderboard handles GET /leaderboard request.
// @Summary Get a page of the newest snapshot of a leaderboard
// @Tags Ranking
// @Produce json
// @Param type query string false "GLOBAL, MONTHLY or PROJECT"
// @Param period query string false "YYYY-MM for MONTHLY, project id for PROJECT"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} model.Leaderboard
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /leaderboard [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetLeaderboard(c *gin.Context) {
	var q model.LeaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		errorResponse(c, "INVALID_REQUEST", "limit and offset must be integers", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Latest(c.Request.Context(), boardOf(q.Type, q.Period), q.Limit, q.Offset)
	if err != nil {
		h.fail(c, "error getting leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExportLeaderboard handles GET /leaderboard/export request.
// @Summary Download the newest snapshot of a leaderboard as a spreadsheet
// @Tags Ranking
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param type query string false "GLOBAL, MONTHLY or PROJECT"
// @Param period query string false "YYYY-MM for MONTHLY, project id for PROJECT"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /leaderboard/export [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ExportLeaderboard(c *gin.Context) {
	board := boardOf(c.Query("type"), c.Query("period"))

	lb, err := h.service.Export(c.Request.Context(), board)
	if err != nil {
		h.fail(c, "error exporting leaderboard", err)
		return
	}

	var buf bytes.Buffer
	if err := service.WriteXLSX(&buf, lb); err != nil {
		h.fail(c, "error rendering leaderboard workbook", err)
		return
	}

	name := strings.ToLower(string(board.Type))
	if board.Period != "" {
		name += "-" + board.Period
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="leaderboard-%s.xlsx"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetUserRank handles GET /users/:id/rank request.
// @Summary Get a user's position in the newest snapshot of a leaderboard
// @Tags Ranking
// @Produce json
// @Param id path string true "User ID"
// @Param type query string false "GLOBAL, MONTHLY or PROJECT"
// @Param period query string false "YYYY-MM for MONTHLY, project id for PROJECT"
// @Success 200 {object} model.UserRankResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id}/rank [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetUserRank(c *gin.Context) {
	board := boardOf(c.Query("type"), c.Query("period"))

	resp, err := h.service.UserRank(c.Request.Context(), c.Param("id"), board)
	if err != nil {
		h.fail(c, "error getting user rank", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateSnapshot handles POST /leaderboard/snapshot request.
// @Summary Compute and store a new snapshot run of a leaderboard
// @Tags Ranking
// @Accept json
// @Produce json
// @Param request body model.SnapshotRequest true "Board"
// @Success 201 {object} model.RunSummary
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /leaderboard/snapshot [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) CreateSnapshot(c *gin.Context) {
	var req model.SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid snapshot request body", "error", err)
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Snapshot(c.Request.Context(), boardOf(req.Type, req.Period))
	if err != nil {
		h.fail(c, "error creating snapshot", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidBoard), errors.Is(err, model.ErrInvalidPeriod):
		errorResponse(c, "INVALID_REQUEST", err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrSnapshotNotFound), errors.Is(err, model.ErrUserNotRanked):
		errorResponse(c, "NOT_FOUND", err.Error(), http.StatusNotFound)
	default:
		h.logger.Errorw(msg, "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	}
}

func boardOf(boardType, period string) model.Board {
	t := model.BoardType(strings.ToUpper(strings.TrimSpace(boardType)))
	if t == "" {
		t = model.BoardGlobal
	}
	return model.Board{Type: t, Period: strings.TrimSpace(period)}
}
