package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	"github.com/festy23/contribution_engine/internal/ingress"
	pipelineModel "github.com/festy23/contribution_engine/internal/pipeline/model"
	"github.com/festy23/contribution_engine/pkg/clock"
)

const secret = "s3cr3t"

const openedPayload = `{"action":"opened","pull_request":{"number":9,"user":{"login":"alice"},` +
	`"head":{"sha":"f00"},"additions":4,"deletions":1,"created_at":"2025-03-01T09:00:00Z"},` +
	`"repository":{"full_name":"acme/engine"}}`

type mockService struct {
	mock.Mock
}

func (m *mockService) Process(ctx context.Context, ev *eventModel.InboundEvent) (*pipelineModel.Outcome, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipelineModel.Outcome), args.Error(1)
}

func (m *mockService) ReplayPending(
	ctx context.Context,
	rec *eventModel.FingerprintRecord,
) (eventModel.ReconcileAction, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(eventModel.ReconcileAction), args.Error(1)
}

func (m *mockService) Reconcile(ctx context.Context, grace time.Duration) (*eventModel.ReconcileReport, error) {
	args := m.Called(ctx, grace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventModel.ReconcileReport), args.Error(1)
}

func setupRouter(svc *mockService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v := ingress.NewVerifier(secret, clock.NewFixed(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	h := New(v, svc, zap.NewNop().Sugar())
	r.POST("/webhooks/github", h.ReceiveGitHub)
	return r
}

func deliver(r *gin.Engine, eventType, body, key string) *httptest.ResponseRecorder {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(body))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "d-1")
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func isOpened(ev *eventModel.InboundEvent) bool {
	return ev.Kind == eventModel.KindOpened && ev.PRExternalID == "acme/engine#9" && ev.Actor == "alice"
}

func TestHandler_ReceiveGitHub(t *testing.T) {
	tests := []struct {
		name       string
		status     eventModel.AdmissionStatus
		wantStatus int
	}{
		{name: "new event", status: eventModel.AcceptedNew, wantStatus: http.StatusAccepted},
		{name: "redelivery", status: eventModel.AcceptedDuplicate, wantStatus: http.StatusOK},
		{name: "rejected", status: eventModel.Rejected, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockService)
			svc.On("Process", mock.Anything, mock.MatchedBy(isOpened)).Return(&pipelineModel.Outcome{
				Admission: &eventModel.AdmitResult{Status: tt.status},
			}, nil)

			w := deliver(setupRouter(svc), "pull_request", openedPayload, secret)

			assert.Equal(t, tt.wantStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_ReceiveGitHub_BadSignature(t *testing.T) {
	svc := new(mockService)
	w := deliver(setupRouter(svc), "pull_request", openedPayload, "forged")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_SIGNATURE", resp.Error.Code)
	svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestHandler_ReceiveGitHub_Ignored(t *testing.T) {
	svc := new(mockService)
	w := deliver(setupRouter(svc), "issues", `{"action":"opened"}`, secret)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IgnoredResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "IGNORED", resp.Status)
	svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestHandler_ReceiveGitHub_ProcessError(t *testing.T) {
	svc := new(mockService)
	svc.On("Process", mock.Anything, mock.Anything).Return(nil, errors.New("database is locked"))

	w := deliver(setupRouter(svc), "pull_request", openedPayload, secret)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
