//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/identity-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.GET("/healthz")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", testutil.ReadBody(t, resp))
}

func TestReadyz_DatabaseReachable(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.GET("/readyz")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", testutil.ReadBody(t, resp))
}

func TestVersion(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.GET("/version")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Version string `json:"version"`
	}
	testutil.DecodeJSON(t, resp, &body)
	assert.NotEmpty(t, body.Version)
}
