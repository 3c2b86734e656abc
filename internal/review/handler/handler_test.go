package handler

import (
	"bytes"
	"context"
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

	pullrequestModel "github.com/festy23/contribution_engine/internal/pullrequest/model"
	reviewModel "github.com/festy23/contribution_engine/internal/review/model"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) SubmitAction(
	ctx context.Context,
	req *reviewModel.SubmitActionRequest,
) (*reviewModel.SubmitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reviewModel.SubmitResult), args.Error(1)
}

func (m *mockService) ResolveConflict(ctx context.Context, prID string) (*reviewModel.Resolution, error) {
	args := m.Called(ctx, prID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reviewModel.Resolution), args.Error(1)
}

func (m *mockService) OwnerOverride(
	ctx context.Context,
	req *reviewModel.OverrideRequest,
) (*reviewModel.Resolution, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reviewModel.Resolution), args.Error(1)
}

func (m *mockService) GetConflict(ctx context.Context, prID string) (*reviewModel.Conflict, error) {
	args := m.Called(ctx, prID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reviewModel.Conflict), args.Error(1)
}

func (m *mockService) ReleaseStaleReviews(ctx context.Context, timeout time.Duration) (*reviewModel.ReleaseReport, error) {
	args := m.Called(ctx, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reviewModel.ReleaseReport), args.Error(1)
}

func setupRouter(svc *mockService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(svc, zap.NewNop().Sugar())
	r.POST("/reviews/action", h.SubmitAction)
	r.POST("/reviews/resolve", h.ResolveConflict)
	r.POST("/reviews/override", h.OwnerOverride)
	r.GET("/reviews/conflicts/:prId", h.GetConflict)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestSubmitAction(t *testing.T) {
	body := reviewModel.SubmitActionRequest{PullRequestID: "pr-1", ReviewerID: "amy", Action: reviewModel.ActionApprove}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "created", wantStatus: http.StatusCreated},
		{name: "suspended", err: reviewModel.ErrReviewerSuspended, wantStatus: http.StatusForbidden, wantCode: "REVIEWER_SUSPENDED"},
		{name: "bad rating", err: reviewModel.ErrInvalidRating, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "missing pr", err: pullrequestModel.ErrPullRequestNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "merged pr", err: reviewModel.ErrPullRequestFinalized, wantStatus: http.StatusConflict, wantCode: "PR_FINALIZED"},
		{name: "store failure", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockService)
			if tt.err != nil {
				svc.On("SubmitAction", mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				svc.On("SubmitAction", mock.Anything, mock.MatchedBy(func(req *reviewModel.SubmitActionRequest) bool {
					return req.ReviewerID == "amy" && req.Action == reviewModel.ActionApprove
				})).Return(&reviewModel.SubmitResult{
					Action:     &reviewModel.Action{ID: "a1"},
					Resolution: &reviewModel.Resolution{PullRequestID: "pr-1"},
				}, nil)
			}

			w := doJSON(setupRouter(svc), http.MethodPost, "/reviews/action", body)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, w))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSubmitAction_MissingFields(t *testing.T) {
	svc := new(mockService)
	w := doJSON(setupRouter(svc), http.MethodPost, "/reviews/action", map[string]string{"reviewer_id": "amy"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "SubmitAction", mock.Anything, mock.Anything)
}

func TestOwnerOverride(t *testing.T) {
	body := reviewModel.OverrideRequest{PullRequestID: "pr-1", OwnerID: "owner", Outcome: reviewModel.ActionApprove}

	svc := new(mockService)
	outcome := reviewModel.ActionApprove
	svc.On("OwnerOverride", mock.Anything, mock.Anything).Return(&reviewModel.Resolution{
		PullRequestID: "pr-1",
		Outcome:       &outcome,
		Method:        reviewModel.MethodOwnerOverride,
		Status:        pullrequestModel.StatusApproved,
	}, nil).Once()
	svc.On("OwnerOverride", mock.Anything, mock.Anything).Return(nil, reviewModel.ErrNotProjectOwner).Once()

	r := setupRouter(svc)

	w := doJSON(r, http.MethodPost, "/reviews/override", body)
	require.Equal(t, http.StatusOK, w.Code)
	var res reviewModel.Resolution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, reviewModel.MethodOwnerOverride, res.Method)
	assert.Equal(t, pullrequestModel.StatusApproved, res.Status)

	w = doJSON(r, http.MethodPost, "/reviews/override", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_PROJECT_OWNER", errorCode(t, w))
}

func TestResolveAndGetConflict(t *testing.T) {
	svc := new(mockService)
	svc.On("ResolveConflict", mock.Anything, "pr-1").Return(&reviewModel.Resolution{PullRequestID: "pr-1", Pending: true}, nil)
	svc.On("GetConflict", mock.Anything, "pr-1").Return(&reviewModel.Conflict{ID: "c1", PullRequestID: "pr-1"}, nil)
	svc.On("GetConflict", mock.Anything, "pr-2").Return(nil, reviewModel.ErrConflictNotFound)
	r := setupRouter(svc)

	w := doJSON(r, http.MethodPost, "/reviews/resolve", reviewModel.ResolveRequest{PullRequestID: "pr-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/reviews/conflicts/pr-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var c reviewModel.Conflict
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, "c1", c.ID)

	w = doJSON(r, http.MethodGet, "/reviews/conflicts/pr-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}
