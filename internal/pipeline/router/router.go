// Package router provides event pipeline routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/contribution_engine/internal/pipeline/handler"
	"github.com/festy23/contribution_engine/internal/pipeline/service"
)

// RegisterRoutes registers event pipeline routes. The service is built by
// the caller because background jobs share it.
func RegisterRoutes(r *gin.Engine, svc service.Service, logger *zap.SugaredLogger) {
	h := handler.New(svc, logger)

	r.POST("/events", h.SubmitEvent)
}
