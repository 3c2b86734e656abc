// Package router provides review module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/contribution_engine/internal/review/handler"
	"github.com/festy23/contribution_engine/internal/review/service"
)

// RegisterRoutes registers review module routes.
func RegisterRoutes(r *gin.Engine, svc service.Service, logger *zap.SugaredLogger) {
	h := handler.New(svc, logger)

	reviews := r.Group("/reviews")
	reviews.POST("/action", h.SubmitAction)
	reviews.POST("/resolve", h.ResolveConflict)
	reviews.POST("/override", h.OwnerOverride)
	reviews.GET("/conflicts/:prId", h.GetConflict)
}
