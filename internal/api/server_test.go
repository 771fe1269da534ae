package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/integrio/status-engine/internal/api"
	"github.com/integrio/status-engine/internal/service"
	"github.com/integrio/status-engine/internal/service/mocks"
)

func serve(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	server := api.NewServer(mocks.NewMockService(ctrl))
	rr := serve(t, server, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response api.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		readiness      error
		expectedStatus int
	}{
		{name: "engine ready", expectedStatus: http.StatusOK},
		{name: "engine not ready", readiness: service.ErrNotReady, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			svc := mocks.NewMockService(ctrl)
			svc.EXPECT().CheckReadiness(gomock.Any()).Return(tt.readiness)

			rr := serve(t, api.NewServer(svc, api.WithRequestTimeout(time.Second)), "/readiness")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			if tt.readiness == nil {
				assert.Equal(t, "ready", response["status"])
			} else {
				assert.Contains(t, response["error"], service.ErrNotReady.Error())
			}
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := serve(t, api.NewServer(mocks.NewMockService(ctrl)), "/version")

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	for _, field := range []string{"version", "commit", "build_date", "go_version", "platform"} {
		assert.Contains(t, response, field)
	}
}

func TestOptionalHandlers(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	stub := func(body string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})
	}

	bare := api.NewServer(mocks.NewMockService(ctrl))
	assert.Equal(t, http.StatusNotFound, serve(t, bare, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, bare, "/ws").Code)

	full := api.NewServer(mocks.NewMockService(ctrl),
		api.WithMetricsHandler(stub("metrics")),
		api.WithPushHandler(stub("push")),
	)
	assert.Equal(t, "metrics", serve(t, full, "/metrics").Body.String())
	assert.Equal(t, "push", serve(t, full, "/ws").Body.String())
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	handler := api.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	assert.Equal(t, http.StatusTeapot, serve(t, handler, "/anything").Code)
}
