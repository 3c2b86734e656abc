// Package router provides webhook ingress routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/contribution_engine/internal/ingress"
	"github.com/festy23/contribution_engine/internal/ingress/handler"
	"github.com/festy23/contribution_engine/internal/pipeline/service"
)

// RegisterRoutes registers the GitHub webhook route. Nothing is registered
// without a verifier.
func RegisterRoutes(r *gin.Engine, verifier *ingress.Verifier, svc service.Service, logger *zap.SugaredLogger) {
	if verifier == nil {
		logger.Warnw("webhook secret not configured, /webhooks/github disabled")
		return
	}
	h := handler.New(verifier, svc, logger)

	r.POST("/webhooks/github", h.ReceiveGitHub)
}
