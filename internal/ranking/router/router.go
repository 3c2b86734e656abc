// Package router provides ranking module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/contribution_engine/internal/ranking/handler"
	"github.com/festy23/contribution_engine/internal/ranking/service"
)

// RegisterRoutes registers ranking module routes.
func RegisterRoutes(r *gin.Engine, svc service.Service, logger *zap.SugaredLogger) {
	h := handler.New(svc, logger)

	r.GET("/leaderboard", h.GetLeaderboard)
	r.GET("/leaderboard/export", h.ExportLeaderboard)
	r.POST("/leaderboard/snapshot", h.CreateSnapshot)
	r.GET("/users/:id/rank", h.GetUserRank)
}
