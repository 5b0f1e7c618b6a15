package http

import (
	"context"
	"time"

	"github.com/qubdrive/api/internal/domain"
)

// UserRepository is the minimal interface the router requires from the user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// SessionRepository is the minimal interface the router requires from the session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
	DisableByUser(ctx context.Context, userID string) error
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
}

// OtpRepository is the minimal interface the router requires from the OTP store.
type OtpRepository interface {
	Put(ctx context.Context, o *domain.OtpRecord) error
	Get(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.OtpRecord, error)
	MarkUsed(ctx context.Context, email string, purpose domain.OtpPurpose) error
	IncrementAttempts(ctx context.Context, email string, purpose domain.OtpPurpose) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// RegistrationRepository is the minimal interface the router requires from the
// registration flow store.
type RegistrationRepository interface {
	Put(ctx context.Context, f *domain.RegistrationFlow) error
	Get(ctx context.Context, email string) (*domain.RegistrationFlow, error)
	Update(ctx context.Context, email string, updates map[string]interface{}) error
	Delete(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// PasswordResetRepository is the minimal interface the router requires from the
// reset flow store.
type PasswordResetRepository interface {
	Put(ctx context.Context, f *domain.PasswordResetFlow) error
	Get(ctx context.Context, email string) (*domain.PasswordResetFlow, error)
	Deactivate(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// LoginAttemptRepository is the minimal interface the router requires from the
// lockout store.
type LoginAttemptRepository interface {
	Get(ctx context.Context, email string) (*domain.LoginAttempt, error)
	Increment(ctx context.Context, email string) (int, error)
	Lock(ctx context.Context, email string, until time.Time) error
	Clear(ctx context.Context, email string) error
}

// RevokedTokenRepository is the minimal interface the router requires from the
// token blacklist.
type RevokedTokenRepository interface {
	Put(ctx context.Context, t *domain.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
