package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/qubdrive/api/internal/application/otp"
	"github.com/qubdrive/api/internal/application/registration"
	"github.com/qubdrive/api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRegistrationService struct{ mock.Mock }

func (m *mockRegistrationService) Start(ctx context.Context, email string) (*registration.StartResult, error) {
	args := m.Called(ctx, email)
	if r, _ := args.Get(0).(*registration.StartResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRegistrationService) VerifyEmail(ctx context.Context, email, code string) (*registration.VerifyResult, error) {
	args := m.Called(ctx, email, code)
	if r, _ := args.Get(0).(*registration.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRegistrationService) Complete(ctx context.Context, req registration.CompleteRequest) (*registration.CompleteResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*registration.CompleteResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRegistrationService) Resend(ctx context.Context, email string) (*otp.GenerateResult, error) {
	args := m.Called(ctx, email)
	if r, _ := args.Get(0).(*otp.GenerateResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRegistrationService) Cancel(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockRegistrationService) Status(ctx context.Context, email string) (*registration.StatusResult, error) {
	args := m.Called(ctx, email)
	if r, _ := args.Get(0).(*registration.StatusResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func postAction(h *RegistrationHandler, action, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/registration/"+action, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("action", action)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Action(rr, req)
	return rr
}

func TestRegistrationAction_StartCreated(t *testing.T) {
	svc := &mockRegistrationService{}
	svc.On("Start", mock.Anything, "a@x.com").Return(&registration.StartResult{
		FlowID:    "flow1",
		ExpiresAt: time.Now().Add(24 * time.Hour),
		NextStep:  "verify-email",
		Message:   "verification code sent",
	}, nil)

	rr := postAction(NewRegistrationHandler(svc), "start", `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "flow1")
}

func TestRegistrationAction_StartConflictMaps409(t *testing.T) {
	svc := &mockRegistrationService{}
	svc.On("Start", mock.Anything, "a@x.com").Return(nil, domain.ErrConflict)

	rr := postAction(NewRegistrationHandler(svc), "start", `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRegistrationAction_StartRateLimitedMaps429WithRetryAfter(t *testing.T) {
	svc := &mockRegistrationService{}
	svc.On("Start", mock.Anything, "a@x.com").Return(nil, &domain.RateLimitedError{RetryAfter: 42 * time.Second})

	rr := postAction(NewRegistrationHandler(svc), "start", `{"email":"a@x.com"}`)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "42", rr.Header().Get("Retry-After"))
}

func TestRegistrationAction_InvalidEmailRejectedBeforeService(t *testing.T) {
	svc := &mockRegistrationService{}

	rr := postAction(NewRegistrationHandler(svc), "start", `{"email":"not-an-email"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestRegistrationAction_MalformedBody(t *testing.T) {
	svc := &mockRegistrationService{}

	rr := postAction(NewRegistrationHandler(svc), "verify-email", `{not json`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegistrationAction_UnknownAction(t *testing.T) {
	rr := postAction(NewRegistrationHandler(&mockRegistrationService{}), "explode", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegistrationStatus_RequiresEmail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/registration/status", nil)
	rr := httptest.NewRecorder()
	NewRegistrationHandler(&mockRegistrationService{}).Status(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
