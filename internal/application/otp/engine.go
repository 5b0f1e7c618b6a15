package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/qubdrive/api/internal/domain"
	"github.com/qubdrive/api/internal/pkg/id"
)

// User-facing verification messages. The boolean-success convention is part of
// the contract: expected negative outcomes come back as results, not errors.
const (
	MsgNoValidOtp  = "no valid code found, request a new one"
	MsgExpired     = "code has expired, request a new one"
	MsgMaxAttempts = "maximum verification attempts exceeded, request a new one"
	MsgInvalidCode = "invalid code"
	MsgVerified    = "code verified"
)

// Store is the subset of the OTP table the engine needs.
type Store interface {
	Put(ctx context.Context, o *domain.OtpRecord) error
	Get(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.OtpRecord, error)
	MarkUsed(ctx context.Context, email string, purpose domain.OtpPurpose) error
	IncrementAttempts(ctx context.Context, email string, purpose domain.OtpPurpose) (int, error)
}

// Notifier dispatches the generated code to the address.
type Notifier interface {
	SendOtp(to, code string, purpose domain.OtpPurpose, expiresAt time.Time) error
}

// Options tune code generation and rate limiting.
type Options struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
	ResendDelay time.Duration
	Retention   time.Duration
	// Production surfaces notifier failures to the caller instead of logging:
	// the user must not believe a code was sent when it wasn't.
	Production bool
}

type GenerateResult struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

type StatusResult struct {
	HasActiveOtp      bool       `json:"has_active_otp"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	AttemptsUsed      int        `json:"attempts_used"`
	CanResend         bool       `json:"can_resend"`
	ResendAvailableIn int        `json:"resend_available_in,omitempty"` // seconds
}

// Engine generates, verifies and rate-limits one-time codes per (email, purpose).
type Engine interface {
	Generate(ctx context.Context, email string, purpose domain.OtpPurpose, metadata map[string]string) (*GenerateResult, error)
	Verify(ctx context.Context, email, code string, purpose domain.OtpPurpose) (*VerifyResult, error)
	Resend(ctx context.Context, email string, purpose domain.OtpPurpose, metadata map[string]string) (*GenerateResult, error)
	Invalidate(ctx context.Context, email string, purpose domain.OtpPurpose) error
	Status(ctx context.Context, email string, purpose domain.OtpPurpose) (*StatusResult, error)
}

type engine struct {
	store    Store
	notifier Notifier
	opts     Options
}

func NewEngine(store Store, notifier Notifier, opts Options) Engine {
	if opts.CodeLength <= 0 {
		opts.CodeLength = 6
	}
	return &engine{store: store, notifier: notifier, opts: opts}
}

// Generate creates a fresh code for the pair, superseding any prior record,
// and dispatches it. A second call within the resend-delay window fails with
// a RateLimitedError carrying the remaining wait.
func (e *engine) Generate(ctx context.Context, email string, purpose domain.OtpPurpose, metadata map[string]string) (*GenerateResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()

	if prev, err := e.store.Get(ctx, email, purpose); err == nil && prev.Actionable(now) {
		if age := now.Sub(prev.CreatedAt); age < e.opts.ResendDelay {
			return nil, &domain.RateLimitedError{RetryAfter: e.opts.ResendDelay - age}
		}
	}

	code, err := numericCode(e.opts.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	rec := &domain.OtpRecord{
		ID:          id.New(),
		Email:       email,
		Purpose:     purpose,
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.opts.TTL),
		MaxAttempts: e.opts.MaxAttempts,
		Metadata:    metadata,
		PurgeAt:     now.Add(e.opts.Retention).Unix(),
	}
	// Put on the (email, purpose) key supersedes any stale prior record.
	if err := e.store.Put(ctx, rec); err != nil {
		return nil, err
	}

	if err := e.notifier.SendOtp(email, code, purpose, rec.ExpiresAt); err != nil {
		if e.opts.Production {
			return nil, fmt.Errorf("dispatch otp email: %w", err)
		}
		// The code stays valid and verifiable even if the email bounced.
		slog.Warn("otp email dispatch failed", "email", email, "purpose", purpose, "err", err)
	}

	return &GenerateResult{ID: rec.ID, ExpiresAt: rec.ExpiresAt}, nil
}

// Verify checks a code against the current record for the pair. The attempt
// counter is incremented before the comparison on every call, so a correct
// code on an over-limit record is still rejected and every guess consumes an
// attempt.
func (e *engine) Verify(ctx context.Context, email, code string, purpose domain.OtpPurpose) (*VerifyResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	rec, err := e.store.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &VerifyResult{Success: false, Message: MsgNoValidOtp}, nil
		}
		return nil, err
	}
	if rec.IsUsed {
		return &VerifyResult{Success: false, Message: MsgNoValidOtp}, nil
	}
	if rec.IsExpired(now) {
		if err := e.store.MarkUsed(ctx, email, purpose); err != nil {
			return nil, err
		}
		return &VerifyResult{Success: false, Message: MsgExpired}, nil
	}
	if rec.Attempts >= rec.MaxAttempts {
		if err := e.store.MarkUsed(ctx, email, purpose); err != nil {
			return nil, err
		}
		return &VerifyResult{Success: false, Message: MsgMaxAttempts}, nil
	}

	attempts, err := e.store.IncrementAttempts(ctx, email, purpose)
	if err != nil {
		return nil, err
	}
	if rec.Code != code {
		remaining := rec.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return &VerifyResult{Success: false, Message: MsgInvalidCode, RemainingAttempts: &remaining}, nil
	}

	if err := e.store.MarkUsed(ctx, email, purpose); err != nil {
		return nil, err
	}
	return &VerifyResult{Success: true, Message: MsgVerified}, nil
}

// Resend forces invalidation of the pair's outstanding code and issues a new
// one. Its delay check is independent of the one inside Generate: once the old
// record is consumed here, Generate's own check sees nothing to limit on.
func (e *engine) Resend(ctx context.Context, email string, purpose domain.OtpPurpose, metadata map[string]string) (*GenerateResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()

	if rec, err := e.store.Get(ctx, email, purpose); err == nil && !rec.IsUsed {
		if age := now.Sub(rec.CreatedAt); age < e.opts.ResendDelay {
			return nil, &domain.RateLimitedError{RetryAfter: e.opts.ResendDelay - age}
		}
		if err := e.store.MarkUsed(ctx, email, purpose); err != nil {
			return nil, err
		}
	}

	return e.Generate(ctx, email, purpose, metadata)
}

// Invalidate consumes the pair's outstanding code without verifying it. A
// consumed record no longer trips the resend-delay check in Generate, so a
// fresh flow for the same pair can start immediately. No-op when nothing is
// outstanding.
func (e *engine) Invalidate(ctx context.Context, email string, purpose domain.OtpPurpose) error {
	email = normalizeEmail(email)

	rec, err := e.store.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.IsUsed {
		return nil
	}
	return e.store.MarkUsed(ctx, email, purpose)
}

// Status is a read-only projection over the pair's current record.
func (e *engine) Status(ctx context.Context, email string, purpose domain.OtpPurpose) (*StatusResult, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	rec, err := e.store.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &StatusResult{CanResend: true}, nil
		}
		return nil, err
	}

	res := &StatusResult{CanResend: true}
	if rec.Actionable(now) {
		res.HasActiveOtp = true
		res.ExpiresAt = &rec.ExpiresAt
		res.AttemptsUsed = rec.Attempts
	}
	if !rec.IsUsed {
		if wait := e.opts.ResendDelay - now.Sub(rec.CreatedAt); wait > 0 {
			res.CanResend = false
			res.ResendAvailableIn = int(wait.Seconds())
		}
	}
	return res, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// numericCode samples a fixed-length code uniformly over the full digit-length
// range (100000–999999 for 6 digits). Not cryptographically hardened beyond
// the source of randomness — attempt and resend limits bound guessing, not
// code-space size.
func numericCode(length int) (string, error) {
	low := int64(1)
	for i := 1; i < length; i++ {
		low *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(low*9))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(low+n.Int64(), 10), nil
}
