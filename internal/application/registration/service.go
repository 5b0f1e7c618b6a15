package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qubdrive/api/internal/application/otp"
	"github.com/qubdrive/api/internal/domain"
	"github.com/qubdrive/api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// FlowStore is the subset of the registration flow table the service needs.
type FlowStore interface {
	Put(ctx context.Context, f *domain.RegistrationFlow) error
	Get(ctx context.Context, email string) (*domain.RegistrationFlow, error)
	Update(ctx context.Context, email string, updates map[string]interface{}) error
	Delete(ctx context.Context, email string) error
}

// UserStore is the subset of the users table the service needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
}

// Notifier sends the post-registration welcome email.
type Notifier interface {
	SendWelcome(to, firstName string) error
}

type StartResult struct {
	FlowID    string    `json:"flow_id"`
	ExpiresAt time.Time `json:"expires_at"`
	NextStep  string    `json:"next_step"`
	Message   string    `json:"message"`
}

type VerifyResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
	NextStep          string `json:"next_step,omitempty"`
}

type CompleteRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	AcceptTerms     bool   `json:"accept_terms"`
}

type CompleteResult struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type StatusResult struct {
	Exists    bool                    `json:"exists"`
	Step      domain.RegistrationStep `json:"step,omitempty"`
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
	Otp       *otp.StatusResult       `json:"otp,omitempty"`
}

// Service drives the three-step registration state machine:
// otp_pending → details_pending → completed, forward-only per email.
type Service interface {
	Start(ctx context.Context, email string) (*StartResult, error)
	VerifyEmail(ctx context.Context, email, code string) (*VerifyResult, error)
	Complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error)
	Resend(ctx context.Context, email string) (*otp.GenerateResult, error)
	Cancel(ctx context.Context, email string) error
	Status(ctx context.Context, email string) (*StatusResult, error)
}

// Deps holds the service's collaborators.
type Deps struct {
	Flows    FlowStore
	Users    UserStore
	Otp      otp.Engine
	Notifier Notifier
	FlowTTL  time.Duration
}

type service struct {
	flows    FlowStore
	users    UserStore
	otp      otp.Engine
	notifier Notifier
	flowTTL  time.Duration
}

func NewService(deps Deps) Service {
	return &service{
		flows:    deps.Flows,
		users:    deps.Users,
		otp:      deps.Otp,
		notifier: deps.Notifier,
		flowTTL:  deps.FlowTTL,
	}
}

// Start opens (or idempotently restarts) a registration flow for the email and
// issues the first verification code. A pre-existing user blocks the flow.
func (s *service) Start(ctx context.Context, email string) (*StartResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}

	now := time.Now().UTC()
	flow, err := s.flows.Get(ctx, email)
	if err == nil && !flow.IsExpired(now) {
		// Idempotent restart: back to otp_pending, same flow row.
		if err := s.flows.Update(ctx, email, map[string]interface{}{
			"step": string(domain.StepOtpPending),
		}); err != nil {
			return nil, err
		}
		flow.Step = domain.StepOtpPending
	} else {
		flow = &domain.RegistrationFlow{
			ID:        id.New(),
			Email:     email,
			Step:      domain.StepOtpPending,
			CreatedAt: now,
			ExpiresAt: now.Add(s.flowTTL),
			TempData:  map[string]string{"started_at": now.Format(time.RFC3339)},
		}
		if err := s.flows.Put(ctx, flow); err != nil {
			return nil, err
		}
	}

	if _, err := s.otp.Generate(ctx, email, domain.PurposeRegistration, map[string]string{"flow_id": flow.ID}); err != nil {
		return nil, err
	}

	return &StartResult{
		FlowID:    flow.ID,
		ExpiresAt: flow.ExpiresAt,
		NextStep:  "verify_email",
		Message:   "verification code sent",
	}, nil
}

// VerifyEmail advances otp_pending → details_pending on a correct code.
// Engine failure messages and remaining-attempt counts propagate verbatim.
func (s *service) VerifyEmail(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	flow, err := s.flows.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &VerifyResult{Success: false, Message: "registration flow not found or expired, start again"}, nil
		}
		return nil, err
	}
	if flow.IsExpired(now) {
		return &VerifyResult{Success: false, Message: "registration flow not found or expired, start again"}, nil
	}
	if flow.Step != domain.StepOtpPending {
		return &VerifyResult{Success: false, Message: "registration is not awaiting email verification"}, nil
	}

	res, err := s.otp.Verify(ctx, email, code, domain.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return &VerifyResult{Success: false, Message: res.Message, RemainingAttempts: res.RemainingAttempts}, nil
	}

	if !flow.Step.CanAdvance(domain.StepDetailsPending) {
		return nil, fmt.Errorf("illegal step transition from %s: %w", flow.Step, domain.ErrConflict)
	}
	tempData := flow.TempData
	if tempData == nil {
		tempData = map[string]string{}
	}
	tempData["email_verified_at"] = now.Format(time.RFC3339)
	if err := s.flows.Update(ctx, email, map[string]interface{}{
		"step":      string(domain.StepDetailsPending),
		"temp_data": tempData,
	}); err != nil {
		return nil, err
	}

	return &VerifyResult{Success: true, Message: "email verified", NextStep: "complete_profile"}, nil
}

// Complete finishes the flow: creates the user record (verified, since the
// email step already confirmed ownership) and marks the flow completed.
func (s *service) Complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	email := normalizeEmail(req.Email)
	now := time.Now().UTC()

	if req.Password != req.ConfirmPassword {
		return nil, fmt.Errorf("passwords do not match: %w", domain.ErrBadRequest)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, domain.ErrBadRequest)
	}
	if !req.AcceptTerms {
		return nil, fmt.Errorf("terms of service must be accepted: %w", domain.ErrBadRequest)
	}

	flow, err := s.flows.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("registration flow not found: %w", domain.ErrNotFound)
	}
	if flow.IsExpired(now) {
		return nil, fmt.Errorf("registration flow expired: %w", domain.ErrNotFound)
	}
	if flow.Step != domain.StepDetailsPending || !flow.Step.CanAdvance(domain.StepCompleted) {
		return nil, fmt.Errorf("email not verified yet: %w", domain.ErrConflict)
	}
	// Race-condition guard: a user may have been created since Start.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		UserID:           id.New(),
		Email:            email,
		PasswordHash:     string(hash),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Role:             domain.RoleUser,
		Verified:         true,
		Enable:           true,
		RegistrationStep: domain.UserStepCompleted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.users.Put(ctx, user); err != nil {
		return nil, err
	}
	if err := s.flows.Update(ctx, email, map[string]interface{}{
		"step": string(domain.StepCompleted),
	}); err != nil {
		return nil, err
	}

	if err := s.notifier.SendWelcome(email, req.FirstName); err != nil {
		slog.Warn("welcome email dispatch failed", "email", email, "err", err)
	}

	return &CompleteResult{UserID: user.UserID, Message: "registration completed"}, nil
}

// Resend re-issues the verification code. Only valid while the flow awaits it.
func (s *service) Resend(ctx context.Context, email string) (*otp.GenerateResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	flow, err := s.flows.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("registration flow not found: %w", domain.ErrNotFound)
	}
	if flow.IsExpired(now) {
		return nil, fmt.Errorf("registration flow expired: %w", domain.ErrNotFound)
	}
	if flow.Step != domain.StepOtpPending {
		return nil, fmt.Errorf("registration is not awaiting email verification: %w", domain.ErrConflict)
	}
	return s.otp.Resend(ctx, email, domain.PurposeRegistration, map[string]string{"flow_id": flow.ID})
}

// Cancel abandons the flow and consumes any outstanding code, so a follow-up
// Start for the same email is neither rate-limited nor verifiable against the
// cancelled code.
func (s *service) Cancel(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := s.flows.Get(ctx, email); err != nil {
		return fmt.Errorf("registration flow not found: %w", domain.ErrNotFound)
	}
	if err := s.otp.Invalidate(ctx, email, domain.PurposeRegistration); err != nil {
		return err
	}
	return s.flows.Delete(ctx, email)
}

// Status is a read-only projection of the flow and its code.
func (s *service) Status(ctx context.Context, email string) (*StatusResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	flow, err := s.flows.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &StatusResult{Exists: false}, nil
		}
		return nil, err
	}
	if flow.IsExpired(now) {
		return &StatusResult{Exists: false}, nil
	}

	res := &StatusResult{Exists: true, Step: flow.Step, ExpiresAt: &flow.ExpiresAt}
	if flow.Step == domain.StepOtpPending {
		otpStatus, err := s.otp.Status(ctx, email, domain.PurposeRegistration)
		if err != nil {
			return nil, err
		}
		res.Otp = otpStatus
	}
	return res, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
