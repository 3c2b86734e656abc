// Package handler provides HTTP handlers for ledger endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	"github.com/festy23/contribution_engine/internal/ledger/service"
)

// Handler handles HTTP requests for ledger endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new ledger handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// GetBalance handles GET /users/:id/points request.
// @Summary Get the cached point total of a user
// @Tags Ledger
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} ledgerModel.BalanceResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id}/points [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetBalance(c *gin.Context) {
	resp, err := h.service.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "error getting balance", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListTransactions handles GET /users/:id/transactions request.
// @Summary Get a page of a user's point transactions
// @Tags Ledger
// @Produce json
// @Param id path string true "User ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} ledgerModel.TransactionPage
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id}/transactions [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ListTransactions(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		errorResponse(c, "INVALID_REQUEST", "limit must be an integer", http.StatusBadRequest)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		errorResponse(c, "INVALID_REQUEST", "offset must be an integer", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ListTransactions(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.fail(c, "error listing transactions", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reverse handles POST /ledger/reverse request.
// @Summary Reverse a point transaction
// @Tags Ledger
// @Accept json
// @Produce json
// @Param request body ledgerModel.ReverseRequest true "Request"
// @Success 201 {object} ledgerModel.PointTransaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "ALREADY_REVERSED or CANNOT_REVERSE_REVERSAL"
// @Failure 500 {object} ErrorResponse
// @Router /ledger/reverse [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) Reverse(c *gin.Context) {
	var req ledgerModel.ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Reverse(c.Request.Context(), req.TransactionID, req.Reason, req.Actor)
	if err != nil {
		h.fail(c, "error reversing transaction", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// VerifyIntegrity handles GET /ledger/integrity request.
// @Summary Compare cached totals with ledger sums
// @Tags Ledger
// @Produce json
// @Success 200 {object} ledgerModel.IntegrityReport
// @Failure 500 {object} ErrorResponse
// @Router /ledger/integrity [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) VerifyIntegrity(c *gin.Context) {
	resp, err := h.service.VerifyIntegrity(c.Request.Context())
	if err != nil {
		h.fail(c, "error verifying ledger integrity", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ledgerModel.ErrInvalidUserID):
		errorResponse(c, "INVALID_REQUEST", "user id is required", http.StatusBadRequest)
	case errors.Is(err, ledgerModel.ErrTransactionNotFound):
		errorResponse(c, "NOT_FOUND", "transaction not found", http.StatusNotFound)
	case errors.Is(err, ledgerModel.ErrAlreadyReversed):
		errorResponse(c, "ALREADY_REVERSED", "transaction already reversed", http.StatusConflict)
	case errors.Is(err, ledgerModel.ErrCannotReverseReversal):
		errorResponse(c, "CANNOT_REVERSE_REVERSAL", "a reversal cannot be reversed", http.StatusConflict)
	default:
		h.logger.Errorw(msg, "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	}
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
