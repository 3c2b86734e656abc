// Package health provides health check endpoint handler.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/database/database"
)

const checkTimeout = 5 * time.Second

// Check probes one dependency. A nil error means healthy.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
	// Optional checks are reported but never make the service unhealthy.
	Optional bool
}

// Handler handles health check requests.
type Handler struct {
	db     *gorm.DB
	checks []Check
	logger *zap.SugaredLogger
}

// New creates a new health handler. The record store is always checked.
func New(db *gorm.DB, logger *zap.SugaredLogger, checks ...Check) *Handler {
	return &Handler{
		db:     db,
		checks: checks,
		logger: logger,
	}
}

// Response represents health check response.
type Response struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// Check handles GET /health request.
//
//	@Summary		Service health
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	Response
//	@Failure		503	{object}	Response
//	@Router			/health [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	resp := Response{Status: "ok", Components: map[string]string{"store": "ok"}}
	status := http.StatusOK

	if err := database.HealthCheck(ctx, h.db); err != nil {
		h.logger.Warnw("health check failed", "component", "store", "error", err)
		resp.Components["store"] = "unavailable"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	for _, check := range h.checks {
		if err := check.Probe(ctx); err != nil {
			h.logger.Warnw("health check failed", "component", check.Name, "error", err)
			resp.Components[check.Name] = "unavailable"
			if !check.Optional {
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
			} else if resp.Status == "ok" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Components[check.Name] = "ok"
	}

	c.JSON(status, resp)
}
