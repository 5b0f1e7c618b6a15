package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qubdrive/api/internal/domain"
	jwtinfra "github.com/qubdrive/api/internal/infrastructure/jwt"
	"github.com/qubdrive/api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// SessionStore is the subset of the sessions table the service needs.
type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
	DisableByUser(ctx context.Context, userID string) error
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
}

// UserStore is the subset of the users table the service needs.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// AttemptStore tracks consecutive failed logins per email.
type AttemptStore interface {
	Get(ctx context.Context, email string) (*domain.LoginAttempt, error)
	Increment(ctx context.Context, email string) (int, error)
	Lock(ctx context.Context, email string, until time.Time) error
	Clear(ctx context.Context, email string) error
}

// BlacklistStore records revoked token jtis until their natural expiry.
type BlacklistStore interface {
	Put(ctx context.Context, t *domain.RevokedToken) error
}

// TokenProvider signs and verifies the access/refresh pair.
type TokenProvider interface {
	SignAccess(pl jwtinfra.Payload) (string, error)
	SignRefresh(pl jwtinfra.Payload) (string, error)
	VerifyRefresh(tokenStr string) (*jwtinfra.Claims, error)
	DecodeAccessLenient(tokenStr string) (*jwtinfra.Claims, error)
}

type LoginRequest struct {
	Email      string            `json:"email" validate:"required,email"`
	Password   string            `json:"password" validate:"required"`
	DeviceInfo domain.DeviceInfo `json:"-"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

type LoginResult struct {
	User    *domain.User `json:"user"`
	Session string       `json:"session_id"`
	Tokens  TokenPair    `json:"tokens"`
}

// Service owns login, token refresh and session revocation.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, device domain.DeviceInfo) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string)
	ListSessions(ctx context.Context, userID string) ([]domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeAllSessions(ctx context.Context, userID string) error
}

// Deps holds the service's collaborators.
type Deps struct {
	Sessions        SessionStore
	Users           UserStore
	Attempts        AttemptStore
	Blacklist       BlacklistStore
	Tokens          TokenProvider
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	MaxAttempts     int
	LockoutDuration time.Duration
}

type service struct {
	sessions  SessionStore
	users     UserStore
	attempts  AttemptStore
	blacklist BlacklistStore
	tokens    TokenProvider

	accessTTL       time.Duration
	refreshTTL      time.Duration
	maxAttempts     int
	lockoutDuration time.Duration
}

func NewService(deps Deps) Service {
	return &service{
		sessions:        deps.Sessions,
		users:           deps.Users,
		attempts:        deps.Attempts,
		blacklist:       deps.Blacklist,
		tokens:          deps.Tokens,
		accessTTL:       deps.AccessTTL,
		refreshTTL:      deps.RefreshTTL,
		maxAttempts:     deps.MaxAttempts,
		lockoutDuration: deps.LockoutDuration,
	}
}

// Login authenticates the credentials under the lockout policy and opens a new
// session. Missing users and wrong passwords are indistinguishable to the
// caller and both count toward the lockout.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()

	if attempt, err := s.attempts.Get(ctx, email); err == nil && attempt.IsLocked(now) {
		return nil, &domain.LockedError{Until: *attempt.LockedUntil}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.recordFailure(ctx, email, now)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, s.recordFailure(ctx, email, now)
	}

	// Correct password clears the counter even when the enable check below
	// rejects the login: the credential holder has proven themselves.
	if err := s.attempts.Clear(ctx, email); err != nil {
		slog.Warn("failed to clear login attempts", "email", email, "err", err)
	}
	if !user.Enable {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrForbidden)
	}

	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           user.UserID,
		DeviceInfo:       req.DeviceInfo,
		Enable:           true,
		RefreshExpiresAt: now.Add(s.refreshTTL).Unix(),
		CreatedAt:        now,
		LastAccessedAt:   now,
	}

	pair, refreshToken, err := s.issuePair(user, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.RefreshToken = refreshToken

	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	if err := s.users.Update(ctx, user.UserID, map[string]interface{}{"last_login_at": now.Format(time.RFC3339)}); err != nil {
		slog.Warn("failed to stamp last login", "user_id", user.UserID, "err", err)
	}

	slog.Info("login succeeded", "event", "login", "user_id", user.UserID, "session_id", sess.SessionID, "ip", req.DeviceInfo.IP)
	user.PasswordHash = ""
	return &LoginResult{User: user, Session: sess.SessionID, Tokens: pair}, nil
}

func (s *service) recordFailure(ctx context.Context, email string, now time.Time) error {
	count, err := s.attempts.Increment(ctx, email)
	if err != nil {
		slog.Warn("failed to record login failure", "email", email, "err", err)
	} else if count >= s.maxAttempts {
		until := now.Add(s.lockoutDuration)
		if err := s.attempts.Lock(ctx, email, until); err != nil {
			slog.Warn("failed to lock account", "email", email, "err", err)
		} else {
			slog.Info("account locked after repeated failures", "event", "lockout", "email", email, "until", until)
		}
	}
	return fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
}

// Refresh validates a refresh token against its session row and rotates the
// stored token in place. The session id never changes across refreshes.
func (s *service) Refresh(ctx context.Context, refreshToken string, device domain.DeviceInfo) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrUnauthorized)
	}
	now := time.Now().UTC()
	// The stored token comparison catches replay of a rotated-out token.
	if !sess.Enable || sess.RefreshToken != refreshToken || now.Unix() >= sess.RefreshExpiresAt {
		return nil, fmt.Errorf("session revoked or expired: %w", domain.ErrUnauthorized)
	}

	user, err := s.users.Get(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrUnauthorized)
	}
	if !user.Enable {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrForbidden)
	}

	pair, newRefresh, err := s.issuePair(user, sess.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RotateRefreshToken(ctx, sess.SessionID, newRefresh, now.Add(s.refreshTTL).Unix()); err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	slog.Info("session refreshed", "event", "refresh", "user_id", user.UserID, "session_id", sess.SessionID, "ip", device.IP)
	return &pair, nil
}

// Logout is best effort and never fails: an expired or malformed token still
// results in a logged-out client. When the token decodes, its jti goes on the
// blacklist and the session is deactivated.
func (s *service) Logout(ctx context.Context, accessToken string) {
	claims, err := s.tokens.DecodeAccessLenient(accessToken)
	if err != nil {
		slog.Info("logout with undecodable token", "err", err)
		return
	}

	var expiresAt int64
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Unix()
	}
	if err := s.blacklist.Put(ctx, &domain.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: expiresAt,
	}); err != nil {
		slog.Warn("failed to blacklist token on logout", "user_id", claims.UserID, "err", err)
	}
	if claims.SessionID != "" {
		if err := s.RevokeSession(ctx, claims.SessionID); err != nil {
			slog.Warn("failed to revoke session on logout", "session_id", claims.SessionID, "err", err)
		}
	}
	slog.Info("logout", "event", "logout", "user_id", claims.UserID, "session_id", claims.SessionID)
}

func (s *service) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// RevokeSession deactivates a single session. Idempotent: revoking an already
// revoked or unknown session is not an error.
func (s *service) RevokeSession(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !sess.Enable {
		return nil
	}
	return s.sessions.Update(ctx, sessionID, map[string]interface{}{"enable": false})
}

// RevokeAllSessions deactivates every session belonging to the user.
func (s *service) RevokeAllSessions(ctx context.Context, userID string) error {
	return s.sessions.DisableByUser(ctx, userID)
}

func (s *service) issuePair(user *domain.User, sessionID string) (TokenPair, string, error) {
	pl := jwtinfra.Payload{
		UserID:      user.UserID,
		Email:       user.Email,
		Role:        user.Role,
		Permissions: user.Permissions,
		SessionID:   sessionID,
	}
	access, err := s.tokens.SignAccess(pl)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.tokens.SignRefresh(pl)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, refresh, nil
}
