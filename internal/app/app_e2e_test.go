//go:build integration

package app

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	postgresDriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/festy23/contribution_engine/internal/alert"
	appConfig "github.com/festy23/contribution_engine/internal/config"
	"github.com/festy23/contribution_engine/internal/database/migrate"
	ledgerModel "github.com/festy23/contribution_engine/internal/ledger/model"
	rankingModel "github.com/festy23/contribution_engine/internal/ranking/model"
	"github.com/festy23/contribution_engine/internal/seed"
	"github.com/festy23/contribution_engine/pkg/clock"
)

const webhookSecret = "e2e-secret"

const prPayload = `{
  "action": %q,
  "number": 42,
  "pull_request": {
    "id": 1001,
    "number": 42,
    "merged": %t,
    "additions": 120,
    "deletions": 30,
    "user": {"login": "alice"},
    "head": {"sha": "abc123"},
    "created_at": "2025-03-01T10:00:00Z",
    "updated_at": "2025-03-02T10:00:05Z",
    "closed_at": "2025-03-02T10:00:00Z",
    "merged_at": "2025-03-02T10:00:00Z"
  },
  "repository": {"id": 7, "full_name": "acme/engine"},
  "sender": {"login": "maintainer"}
}`

// EngineE2ESuite drives the HTTP API against PostgreSQL.
type EngineE2ESuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *gorm.DB
	app       *App
	server    *httptest.Server
}

func (s *EngineE2ESuite) SetupSuite() {
	s.ctx = context.Background()

	pg, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("contributions"),
		postgres.WithUsername("engine"),
		postgres.WithPassword("engine"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(s.T(), err)
	s.container = pg

	connStr, err := pg.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)
	s.db, err = gorm.Open(postgresDriver.Open(connStr), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(s.T(), err)

	_, file, _, ok := runtime.Caller(0)
	require.True(s.T(), ok)
	s.T().Setenv("MIGRATIONS_PATH", filepath.Join(filepath.Dir(file), "..", "..", "migrations"))
	require.NoError(s.T(), migrate.Migrate(s.db))

	gin.SetMode(gin.TestMode)
	cfg := appConfig.Config{
		Engine:       appConfig.LoadEngineConfigFromEnv(),
		Integrations: appConfig.IntegrationsConfig{WebhookSecret: webhookSecret},
		GinMode:      "test",
	}
	s.app = New(s.ctx, cfg, s.db, zap.NewNop().Sugar(), Options{
		Clock:    clock.NewFixed(time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)),
		Notifier: alert.Nop{},
		GitHub:   noGitHub{},
	})

	_, err = s.app.Seeder().Apply(s.ctx, &seed.File{
		Repositories: []seed.RepositoryEntry{{ID: "acme/engine", ProjectID: "acme", OwnerID: "owner"}},
	})
	require.NoError(s.T(), err)

	s.server = httptest.NewServer(s.app.Router())
}

func (s *EngineE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *EngineE2ESuite) deliver(action string, merged bool, delivery string) int {
	return s.deliverSigned(action, merged, delivery, webhookSecret)
}

func (s *EngineE2ESuite) deliverSigned(action string, merged bool, delivery, secret string) int {
	body := fmt.Sprintf(prPayload, action, merged)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/webhooks/github", strings.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-GitHub-Delivery", delivery)
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func (s *EngineE2ESuite) getJSON(path string, out interface{}) int {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *EngineE2ESuite) TestWebhookToLeaderboard() {
	s.Equal(http.StatusUnauthorized, s.deliverSigned("opened", false, "forged", "wrong-secret"))

	s.Equal(http.StatusAccepted, s.deliver("opened", false, "d-opened"))
	s.Equal(http.StatusAccepted, s.deliver("closed", true, "d-merged"))
	s.Equal(http.StatusOK, s.deliver("closed", true, "d-merged-retry"), "same merge under a new delivery id")

	var balance ledgerModel.BalanceResponse
	s.Require().Equal(http.StatusOK, s.getJSON("/users/alice/points", &balance))
	s.Equal(int64(80), balance.TotalPoints)

	body, err := json.Marshal(rankingModel.SnapshotRequest{Type: "GLOBAL"})
	s.Require().NoError(err)
	resp, err := http.Post(s.server.URL+"/leaderboard/snapshot", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusCreated, resp.StatusCode)

	var rank rankingModel.UserRankResponse
	s.Require().Equal(http.StatusOK, s.getJSON("/users/alice/rank", &rank))
	s.Equal(1, rank.Rank)
	s.Equal(int64(80), rank.Points)

	report, err := s.app.Ledger.VerifyIntegrity(s.ctx)
	s.Require().NoError(err)
	s.True(report.OK())
}

func TestEngineE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(EngineE2ESuite))
}
