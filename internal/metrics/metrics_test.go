package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string]int

func (f fakeSource) BundleStateCounts() map[string]int { return f }

func gather(t *testing.T, r *Recorder) map[string]float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(r))
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, l := range m.GetLabel() {
				key += "|" + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.LifecycleOperation("start", nil)
	r.LifecycleOperation("start", nil)
	r.LifecycleOperation("start", errors.New("boom"))
	r.ResolveCompleted(time.Millisecond, 3, 1)
	r.RefreshCompleted(time.Second, 2)

	got := gather(t, r)
	assert.Equal(t, 2.0, got["gosgi_lifecycle_operations_total|start|success"])
	assert.Equal(t, 1.0, got["gosgi_lifecycle_operations_total|start|failure"])
	assert.Equal(t, 3.0, got["gosgi_resolved_modules_total"])
	assert.Equal(t, 1.0, got["gosgi_resolution_failures_total"])
	assert.Equal(t, 1.0, got["gosgi_resolve_duration_seconds"])
	assert.Equal(t, 1.0, got["gosgi_refresh_duration_seconds"])
	assert.Equal(t, 2.0, got["gosgi_refreshed_bundles_total"])

	_, ok := got["gosgi_bundles|ACTIVE"]
	assert.False(t, ok, "no state gauge without a source")
}

func TestRecorderBundleStates(t *testing.T) {
	r := NewRecorder()
	r.SetStateSource(fakeSource{"ACTIVE": 2, "INSTALLED": 1})

	got := gather(t, r)
	assert.Equal(t, 2.0, got["gosgi_bundles|ACTIVE"])
	assert.Equal(t, 1.0, got["gosgi_bundles|INSTALLED"])
}

func TestServerHandler(t *testing.T) {
	r := NewRecorder()
	r.LifecycleOperation("install", nil)
	s := NewServer("127.0.0.1:0", r.Registry())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gosgi_lifecycle_operations_total{operation="install",result="success"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer("127.0.0.1:0", NewRecorder().Registry())
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx), "second start fails")

	addr := s.Addr()
	require.NotEmpty(t, addr)
	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "gosgi_refreshed_bundles_total")

	require.NoError(t, s.Stop())
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Stop())
}
