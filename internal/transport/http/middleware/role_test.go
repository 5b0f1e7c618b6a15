package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	jwtinfra "github.com/qubdrive/api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
)

func serveRole(claims *jwtinfra.Claims, roles ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if claims != nil {
		req = req.WithContext(context.WithValue(context.Background(), ClaimsKey, claims))
	}
	rr := httptest.NewRecorder()
	RequireRole(roles...)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	return rr
}

func TestRequireRole_NoClaimsInContext(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, serveRole(nil, "admin").Code)
}

func TestRequireRole_WrongRole(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, serveRole(&jwtinfra.Claims{Role: "user"}, "admin").Code)
}

func TestRequireRole_CorrectRole(t *testing.T) {
	assert.Equal(t, http.StatusOK, serveRole(&jwtinfra.Claims{Role: "admin"}, "admin").Code)
}

func TestRequireRole_MultipleAllowedRoles(t *testing.T) {
	assert.Equal(t, http.StatusOK, serveRole(&jwtinfra.Claims{Role: "user"}, "admin", "user").Code)
}
