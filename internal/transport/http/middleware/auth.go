package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/qubdrive/api/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// TokenVerifier validates an access token string.
type TokenVerifier interface {
	VerifyAccess(tokenStr string) (*jwtinfra.Claims, error)
}

// Blacklist answers whether a token's jti has been revoked.
type Blacklist interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Auth returns middleware that validates the Bearer access token against the
// verifier AND the revocation blacklist, injecting claims into the context.
// A logged-out token fails even while its signature is still valid.
func Auth(verifier TokenVerifier, blacklist Blacklist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := verifier.VerifyAccess(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			revoked, err := blacklist.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if revoked {
				writeJSONError(w, http.StatusUnauthorized, "token has been revoked")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}
