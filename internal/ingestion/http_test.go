package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/clipflow/internal/backend"
	"github.com/your-org/clipflow/pkg/metrics"
)

func newOpsHandler(t *testing.T, auth *staticAuth, login bool) http.Handler {
	t.Helper()
	session := backend.NewSession(backend.SessionParams{Auth: auth})
	if login {
		require.NoError(t, session.Refresh(context.Background()))
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Event("ignored")

	svc := NewService(Params{Classifier: NewClassifier(testRules()), Credentials: session, QueueSize: 4})
	return NewHTTPHandler(svc, session, reg, nil).Router()
}

func doRequest(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	h := newOpsHandler(t, &staticAuth{token: "t"}, false)

	assert.Equal(t, http.StatusOK, doRequest(h, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(h, http.MethodGet, "/readyz").Code)

	h = newOpsHandler(t, &staticAuth{token: "t"}, true)
	assert.Equal(t, http.StatusOK, doRequest(h, http.MethodGet, "/readyz").Code)
}

func TestStatusEndpoint(t *testing.T) {
	h := newOpsHandler(t, &staticAuth{token: "t"}, true)

	rec := doRequest(h, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["queue_depth"])
	assert.Contains(t, body, "token_acquired_at")
}

func TestRefreshEndpoint(t *testing.T) {
	auth := &staticAuth{token: "t"}
	h := newOpsHandler(t, auth, true)

	assert.Equal(t, http.StatusOK, doRequest(h, http.MethodPost, "/api/v1/session/refresh").Code)

	auth.set("", errors.New("backend down"))
	assert.Equal(t, http.StatusBadGateway, doRequest(h, http.MethodPost, "/api/v1/session/refresh").Code)
	assert.Equal(t, http.StatusOK, doRequest(h, http.MethodGet, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newOpsHandler(t, &staticAuth{token: "t"}, true)

	rec := doRequest(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clipflow_events_total{outcome="ignored"} 1`)
}
