package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/identity-garden/internal/access"
	"github.com/bissquit/identity-garden/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	accountID int64
	role      domain.Role
	err       error
	gotToken  string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (int64, domain.Role, error) {
	s.gotToken = token
	return s.accountID, s.role, s.err
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_PopulatesIdentity(t *testing.T) {
	validator := &stubValidator{accountID: 7, role: domain.RoleEditor}

	var gotID int64
	var gotRole domain.Role
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetAccountID(r.Context())
		gotRole = GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "some-token", validator.gotToken)
	assert.Equal(t, int64(7), gotID)
	assert.Equal(t, domain.RoleEditor, gotRole)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	called := false
	handler := AuthMiddleware(&stubValidator{})(okHandler(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	for _, header := range []string{"some-token", "Basic dXNlcjpwYXNz"} {
		called := false
		handler := AuthMiddleware(&stubValidator{})(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.False(t, called)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	called := false
	validator := &stubValidator{err: errors.New("bad signature")}
	handler := AuthMiddleware(validator)(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequirePermission_AllowsDeclaredRole(t *testing.T) {
	policy := access.Policy{"accounts.list": {domain.RoleAdmin}}

	called := false
	handler := RequirePermission(policy, "accounts.list")(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	ctx := context.WithValue(req.Context(), RoleKey, domain.RoleAdmin)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequirePermission_ForbidsRoleOutsideSet(t *testing.T) {
	policy := access.Policy{"accounts.list": {domain.RoleAdmin}}

	for _, role := range []domain.Role{domain.RoleEditor, domain.RoleViewer} {
		called := false
		handler := RequirePermission(policy, "accounts.list")(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		ctx := context.WithValue(req.Context(), RoleKey, role)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusForbidden, rec.Code, "role %s", role)
		assert.False(t, called)
	}
}

func TestRequirePermission_NoVerifiedRole(t *testing.T) {
	called := false
	handler := RequirePermission(access.DefaultPolicy, access.OpAccountList)(okHandler(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRateLimitMiddleware_EnforcesBurst(t *testing.T) {
	called := 0
	handler := RateLimitMiddleware(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
	assert.Equal(t, 2, called)
}

func TestRateLimitMiddleware_BucketsPerIP(t *testing.T) {
	handler := RateLimitMiddleware(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, addr := range []string{"10.0.0.1:1234", "10.0.0.2:1234"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "first request from %s", addr)
	}
}
