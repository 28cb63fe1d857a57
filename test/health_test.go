package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpoint tests the /health endpoint using the actual app router
func TestHealthEndpoint(t *testing.T) {
	mux := GetTestMux()

	t.Run("GET /health returns 200 OK", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/health", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var response map[string]interface{}
		err = json.Unmarshal(rr.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.Equal(t, "OK", response["status"])
		assert.NotEmpty(t, response["time"])
	})

	t.Run("POST /health returns method not allowed", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/health", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("health works without authentication", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/health", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		// Should return 200, not 401 (no auth middleware on liveness probes)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

// TestHealthDetailsEndpoint tests the /health/details endpoint
func TestHealthDetailsEndpoint(t *testing.T) {
	mux := GetTestMux()

	t.Run("GET /health/details pings the database", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/health/details", nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var response map[string]interface{}
		err = json.Unmarshal(rr.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.Equal(t, "OK", response["status"])
		assert.Equal(t, "ok", response["database"])
		assert.NotEmpty(t, response["uptime"])
	})
}

// TestMetricsEndpoint tests that the Prometheus endpoint is wired
func TestMetricsEndpoint(t *testing.T) {
	mux := GetTestMux()

	req, err := http.NewRequest("GET", "/metrics", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
