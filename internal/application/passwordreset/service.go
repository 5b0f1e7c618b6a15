package passwordreset

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

// GenericRequestMessage is returned by Request regardless of whether the email
// exists. The response must be byte-identical on both paths so the endpoint
// cannot be used to enumerate accounts.
const GenericRequestMessage = "if an account exists for this address, a password reset code has been sent"

const msgInvalidFlow = "invalid or expired reset request"

// FlowStore is the subset of the reset flow table the service needs.
type FlowStore interface {
	Put(ctx context.Context, f *domain.PasswordResetFlow) error
	Get(ctx context.Context, email string) (*domain.PasswordResetFlow, error)
	Deactivate(ctx context.Context, email string) error
}

// UserStore is the subset of the users table the service needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// SessionStore revokes sessions after a successful reset.
type SessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

// Notifier sends the post-reset security alert.
type Notifier interface {
	SendSecurityAlert(to, subject, body string) error
}

// SMSSender is the optional second alert channel for accounts with a phone on
// file. May be nil.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type RequestResult struct {
	Message string `json:"message"`
}

type VerifyResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
	ValidForMinutes   int    `json:"valid_for_minutes,omitempty"`
}

type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type StatusResult struct {
	Active    bool              `json:"active"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Otp       *otp.StatusResult `json:"otp,omitempty"`
}

// Service drives the password reset flow: request → verify → set new password.
type Service interface {
	Request(ctx context.Context, email string) (*RequestResult, error)
	VerifyOtp(ctx context.Context, email, code string) (*VerifyResult, error)
	ResetWithOtp(ctx context.Context, email, code, newPassword, confirmPassword string) (*ResetResult, error)
	Resend(ctx context.Context, email string) (*otp.GenerateResult, error)
	Cancel(ctx context.Context, email string) error
	Status(ctx context.Context, email string) (*StatusResult, error)
}

// Deps holds the service's collaborators.
type Deps struct {
	Flows    FlowStore
	Users    UserStore
	Sessions SessionStore
	Otp      otp.Engine
	Notifier Notifier
	SMS      SMSSender
	FlowTTL  time.Duration
}

type service struct {
	flows    FlowStore
	users    UserStore
	sessions SessionStore
	otp      otp.Engine
	notifier Notifier
	sms      SMSSender
	flowTTL  time.Duration
}

func NewService(deps Deps) Service {
	return &service{
		flows:    deps.Flows,
		users:    deps.Users,
		sessions: deps.Sessions,
		otp:      deps.Otp,
		notifier: deps.Notifier,
		sms:      deps.SMS,
		flowTTL:  deps.FlowTTL,
	}
}

// Request opens (or refreshes) a reset flow and sends a code — but only when
// the account exists and is enabled. Every internal outcome, including rate
// limiting, collapses into the same generic response; only the log records
// what actually happened.
func (s *service) Request(ctx context.Context, email string) (*RequestResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil || !user.Enable {
		slog.Info("password reset requested for unknown or disabled account", "event", "password_reset_noop", "email", email)
		return &RequestResult{Message: GenericRequestMessage}, nil
	}

	now := time.Now().UTC()
	flow := &domain.PasswordResetFlow{
		ID:        id.New(),
		Email:     email,
		Active:    true,
		CreatedAt: now,
		ExpiresAt: now.Add(s.flowTTL),
	}
	// Put on the email key supersedes any prior flow: the old one is no
	// longer reachable, which is its true→false transition.
	if err := s.flows.Put(ctx, flow); err != nil {
		slog.Warn("password reset flow creation failed", "email", email, "err", err)
		return &RequestResult{Message: GenericRequestMessage}, nil
	}

	if _, err := s.otp.Generate(ctx, email, domain.PurposePasswordReset, map[string]string{"flow_id": flow.ID}); err != nil {
		// A rate-limit or dispatch failure must not change the response shape.
		slog.Warn("password reset code generation failed", "email", email, "err", err)
		return &RequestResult{Message: GenericRequestMessage}, nil
	}

	slog.Info("password reset flow created", "event", "password_reset_requested", "email", email, "flow_id", flow.ID)
	return &RequestResult{Message: GenericRequestMessage}, nil
}

// VerifyOtp is an optional intermediate check. It consumes the code on success
// (engine contract) but leaves the flow active.
func (s *service) VerifyOtp(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	flow, err := s.flows.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &VerifyResult{Success: false, Message: msgInvalidFlow}, nil
		}
		return nil, err
	}
	if !flow.Usable(now) {
		return &VerifyResult{Success: false, Message: msgInvalidFlow}, nil
	}

	res, err := s.otp.Verify(ctx, email, code, domain.PurposePasswordReset)
	if err != nil {
		return nil, err
	}
	out := &VerifyResult{Success: res.Success, Message: res.Message, RemainingAttempts: res.RemainingAttempts}
	if res.Success {
		out.ValidForMinutes = int(time.Until(flow.ExpiresAt).Minutes())
	}
	return out, nil
}

// ResetWithOtp sets the new password and consumes the flow. A wrong or spent
// code is an expected outcome and comes back as a failed result, not an error.
// Success revokes every active session for the user.
func (s *service) ResetWithOtp(ctx context.Context, email, code, newPassword, confirmPassword string) (*ResetResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	if newPassword != confirmPassword {
		return nil, fmt.Errorf("passwords do not match: %w", domain.ErrBadRequest)
	}
	if len(newPassword) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, domain.ErrBadRequest)
	}

	flow, err := s.flows.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &ResetResult{Success: false, Message: msgInvalidFlow}, nil
		}
		return nil, err
	}
	if !flow.Usable(now) {
		return &ResetResult{Success: false, Message: msgInvalidFlow}, nil
	}

	res, err := s.otp.Verify(ctx, email, code, domain.PurposePasswordReset)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return &ResetResult{Success: false, Message: res.Message}, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user.UserID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		return nil, err
	}
	if err := s.flows.Deactivate(ctx, email); err != nil {
		return nil, err
	}
	// Forced global logout: the new credential must be the only way in.
	if err := s.sessions.DisableByUser(ctx, user.UserID); err != nil {
		return nil, err
	}

	slog.Info("password reset completed", "event", "password_reset_completed", "user_id", user.UserID, "email", email)
	s.sendAlerts(ctx, user)

	return &ResetResult{Success: true, Message: "password has been reset, sign in with your new password"}, nil
}

// Resend re-issues the reset code while the flow is usable.
func (s *service) Resend(ctx context.Context, email string) (*otp.GenerateResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	flow, err := s.flows.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("password reset flow not found: %w", domain.ErrNotFound)
	}
	if !flow.Usable(now) {
		return nil, fmt.Errorf("password reset flow expired or inactive: %w", domain.ErrNotFound)
	}
	return s.otp.Resend(ctx, email, domain.PurposePasswordReset, map[string]string{"flow_id": flow.ID})
}

// Cancel deactivates the flow and consumes any outstanding code. Idempotent.
func (s *service) Cancel(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := s.flows.Get(ctx, email); err != nil {
		return fmt.Errorf("password reset flow not found: %w", domain.ErrNotFound)
	}
	if err := s.otp.Invalidate(ctx, email, domain.PurposePasswordReset); err != nil {
		return err
	}
	return s.flows.Deactivate(ctx, email)
}

// Status is a read-only projection of the flow and its code.
func (s *service) Status(ctx context.Context, email string) (*StatusResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	flow, err := s.flows.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &StatusResult{Active: false}, nil
		}
		return nil, err
	}
	if !flow.Usable(now) {
		return &StatusResult{Active: false}, nil
	}

	otpStatus, err := s.otp.Status(ctx, email, domain.PurposePasswordReset)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Active: true, ExpiresAt: &flow.ExpiresAt, Otp: otpStatus}, nil
}

func (s *service) sendAlerts(ctx context.Context, user *domain.User) {
	body := "Your Qub Drive password was just changed and all devices were signed out. If this wasn't you, contact support immediately."
	if err := s.notifier.SendSecurityAlert(user.Email, "Your Qub Drive password was changed", body); err != nil {
		slog.Warn("security alert email dispatch failed", "user_id", user.UserID, "err", err)
	}
	if s.sms != nil && user.Phone != nil {
		if err := s.sms.SendSMS(ctx, *user.Phone, "Your Qub Drive password was changed. Not you? Contact support."); err != nil {
			slog.Warn("security alert sms dispatch failed", "user_id", user.UserID, "err", err)
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
