package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"relay/internal/platform/metrics"
	"relay/pkg/testutil"
)

func TestHealthz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantBody   string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"all healthy", map[string]Check{"database": ok, "redis": ok}, http.StatusOK, "ok"},
		{"one failing", map[string]Check{"database": ok, "redis": down}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.Get(t, NewRouter(http.NotFoundHandler(), tt.checks), "/healthz")
			testutil.AssertStatus(t, rr, tt.wantStatus)
			testutil.AssertJSONContains(t, rr, "status", tt.wantBody)
		})
	}
}

func TestHealthzReportsFailingCheck(t *testing.T) {
	testutil.Given(t, "a router whose redis check fails", func(t *testing.T) {
		h := NewRouter(http.NotFoundHandler(), map[string]Check{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
		})

		testutil.When(t, "GET /healthz", func(t *testing.T) {
			rr := testutil.Get(t, h, "/healthz")

			testutil.Then(t, "each check reports its own state", func(t *testing.T) {
				checks, ok := testutil.DecodeJSON(t, rr)["checks"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, "ok", checks["database"])
				assert.Equal(t, "dial tcp: refused", checks["redis"])
			})
		})
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	m.IncrementHandled("callback")

	rr := testutil.Get(t, NewRouter(metrics.Handler(reg), nil), "/metrics")

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), `relay_events_handled_total{kind="callback"} 1`)
}
