// Package router provides pullrequest module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/pullrequest/handler"
	"github.com/festy23/contribution_engine/internal/pullrequest/repository"
	"github.com/festy23/contribution_engine/internal/pullrequest/service"
)

// RegisterRoutes registers pullrequest module routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, logger *zap.SugaredLogger) {
	repo := repository.New(db, logger)
	svc := service.New(repo, db, logger)
	h := handler.New(svc, logger)

	r.GET("/pullRequests/:id", h.GetPullRequest)
}
