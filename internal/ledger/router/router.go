// Package router provides ledger module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/alert"
	"github.com/festy23/contribution_engine/internal/ledger/handler"
	"github.com/festy23/contribution_engine/internal/ledger/repository"
	"github.com/festy23/contribution_engine/internal/ledger/service"
	pullrequestRepository "github.com/festy23/contribution_engine/internal/pullrequest/repository"
	pullrequestService "github.com/festy23/contribution_engine/internal/pullrequest/service"
	"github.com/festy23/contribution_engine/pkg/clock"
)

// RegisterRoutes registers ledger module routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, clk clock.Clock, notifier alert.Notifier, logger *zap.SugaredLogger) {
	prSvc := pullrequestService.New(pullrequestRepository.New(db, logger), db, logger)
	svc := service.New(repository.New(db, logger), db, clk, notifier, prSvc, logger)
	h := handler.New(svc, logger)

	r.GET("/users/:id/points", h.GetBalance)
	r.GET("/users/:id/transactions", h.ListTransactions)
	r.POST("/ledger/reverse", h.Reverse)
	r.GET("/ledger/integrity", h.VerifyIntegrity)
}
