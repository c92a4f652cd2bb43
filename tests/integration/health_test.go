//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_Livez(t *testing.T) {
	resp := do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON[healthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
}

func TestHealth_Readyz(t *testing.T) {
	resp := do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON[healthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
}

func TestRequestID_Echoed(t *testing.T) {
	resp := do(t, http.MethodGet, "/livez", "", nil)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRateLimit_HeadersPresent(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/products", shopKey, nil)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
}
