package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qubdrive/api/internal/config"
	"github.com/qubdrive/api/internal/pkg/id"
)

// Token types carried in the token_type claim. Verification rejects a token
// whose type doesn't match the expected use: an access token must never
// validate as a refresh token and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrInvalidTokenType = errors.New("invalid token type")

// Claims holds the JWT payload fields shared by both token types.
type Claims struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"token_type"`
	SessionID   string   `json:"session_id"`
	jwt.RegisteredClaims
}

// Payload is the identity bound into a token pair.
type Payload struct {
	UserID      string
	Email       string
	Role        string
	Permissions []string
	SessionID   string
}

// Provider signs and verifies HS256 JWTs. Access and refresh tokens use
// distinct secrets so a leaked secret for one type cannot mint the other.
type Provider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

// SignAccess issues a short-lived access token for the payload.
func (p *Provider) SignAccess(pl Payload) (string, error) {
	return p.sign(pl, TypeAccess, p.accessSecret, p.accessTTL)
}

// SignRefresh issues a long-lived refresh token for the payload.
func (p *Provider) SignRefresh(pl Payload) (string, error) {
	return p.sign(pl, TypeRefresh, p.refreshSecret, p.refreshTTL)
}

func (p *Provider) sign(pl Payload, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:      pl.UserID,
		Email:       pl.Email,
		Role:        pl.Role,
		Permissions: pl.Permissions,
		TokenType:   tokenType,
		SessionID:   pl.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyAccess validates an access token: signature, expiry and token type.
func (p *Provider) VerifyAccess(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, TypeAccess, p.accessSecret)
}

// VerifyRefresh validates a refresh token: signature, expiry and token type.
func (p *Provider) VerifyRefresh(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, TypeRefresh, p.refreshSecret)
}

func (p *Provider) verify(tokenStr, wantType string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("expected %s token: %w", wantType, ErrInvalidTokenType)
	}
	return claims, nil
}

// DecodeAccessLenient parses an access token checking signature and token type
// but tolerating expiry. Logout uses it to recover the session id and jti from
// a token that may already have expired.
func (p *Provider) DecodeAccessLenient(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.accessSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != TypeAccess {
		return nil, fmt.Errorf("expected %s token: %w", TypeAccess, ErrInvalidTokenType)
	}
	return claims, nil
}
