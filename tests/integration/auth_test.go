//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/identity-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountPayload struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type accountEnvelope struct {
	Data accountPayload `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func registerAccount(t *testing.T, client *testutil.Client, email, password string) accountPayload {
	t.Helper()

	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var envelope accountEnvelope
	testutil.DecodeJSON(t, resp, &envelope)
	return envelope.Data
}

func TestRegister_CreatesViewerAccount(t *testing.T) {
	client := newTestClient(t)
	email := testutil.RandomEmail()

	account := registerAccount(t, client, email, "password123")

	assert.Positive(t, account.ID)
	assert.Equal(t, email, account.Email)
	assert.Equal(t, "viewer", account.Role)
	assert.NotEmpty(t, account.CreatedAt)
}

func TestRegister_NeverReturnsCredentialFields(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":    testutil.RandomEmail(),
		"password": "password123",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &envelope)

	for key := range envelope.Data {
		assert.NotContains(t, []string{"password", "password_hash", "credential_digest"}, key)
	}
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	client := newTestClient(t)
	email := testutil.RandomEmail()
	registerAccount(t, client, email, "password123")

	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": "different456",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var envelope errorEnvelope
	testutil.DecodeJSON(t, resp, &envelope)
	assert.Equal(t, "email already registered", envelope.Error.Message)
}

func TestRegister_ValidationFailures(t *testing.T) {
	client := newTestClient(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "password123"}},
		{"malformed email", map[string]string{"email": "not-an-email", "password": "password123"}},
		{"short password", map[string]string{"email": testutil.RandomEmail(), "password": "12345"}},
		{"unknown role", map[string]string{"email": testutil.RandomEmail(), "password": "password123", "role": "superuser"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.POST("/api/v1/auth/register", tt.body)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestLogin_ReturnsAccessToken(t *testing.T) {
	client := newTestClient(t)
	email := testutil.RandomEmail()
	registerAccount(t, client, email, "password123")

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": "password123",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.NotEmpty(t, result.Data.AccessToken)
}

func TestLogin_FailureDoesNotRevealWhichCredentialWasWrong(t *testing.T) {
	client := newTestClient(t)
	email := testutil.RandomEmail()
	registerAccount(t, client, email, "password123")

	attempts := []map[string]string{
		{"email": testutil.RandomEmail(), "password": "password123"},
		{"email": email, "password": "wrongpassword"},
	}

	messages := make([]string, 0, len(attempts))
	for _, body := range attempts {
		resp, err := client.POST("/api/v1/auth/login", body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var envelope errorEnvelope
		testutil.DecodeJSON(t, resp, &envelope)
		messages = append(messages, envelope.Error.Message)
	}

	assert.Equal(t, messages[0], messages[1], "unknown email and wrong password must be indistinguishable")
}

func TestLogout_AcknowledgesAndLeavesTokenUsable(t *testing.T) {
	client := newTestClient(t)
	email := testutil.RandomEmail()
	registerAccount(t, client, email, "password123")
	client.LoginAs(t, email, "password123")

	resp, err := client.POST("/api/v1/auth/logout", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "successfully logged out", result.Data.Message)
}

func TestProfile_ReturnsCallerAccount(t *testing.T) {
	client := newTestClient(t)
	email := testutil.RandomEmail()
	created := registerAccount(t, client, email, "password123")
	client.LoginAs(t, email, "password123")

	resp, err := client.GET("/api/v1/users/profile")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope accountEnvelope
	testutil.DecodeJSON(t, resp, &envelope)
	assert.Equal(t, created.ID, envelope.Data.ID)
	assert.Equal(t, email, envelope.Data.Email)
	assert.Equal(t, "viewer", envelope.Data.Role)
}

func TestProfile_RequiresAuthentication(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.GET("/api/v1/users/profile")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutes_RejectForgedToken(t *testing.T) {
	client := newTestClient(t)
	client.Token = "forged.token.value"

	resp, err := client.GET("/api/v1/users/profile")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
