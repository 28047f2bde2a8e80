package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg, "farmauth")
	require.NoError(t, err)

	m.ObserveRequest("/auth/me", "GET", 200, 20*time.Millisecond)
	m.ObserveRequest("/auth/me", "GET", 200, 30*time.Millisecond)
	m.ObserveRequest("/auth/login", "POST", 0, time.Second)
	m.ProfileCache(CacheHit)
	m.SessionCleared("logout")
	m.SetState("authenticated", []string{"anonymous", "authenticated"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/auth/me", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/auth/login", "POST", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.profileCache.WithLabelValues(CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clears.WithLabelValues("logout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("authenticated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("anonymous")))

	n, err := testutil.GatherAndCount(reg, "farmauth_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_RegisterTwiceReuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg, "farmauth")
	require.NoError(t, err)
	b, err := New(reg, "farmauth")
	require.NoError(t, err)

	a.SessionCleared("refresh_failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(b.clears.WithLabelValues("refresh_failed")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/x", "GET", 500, time.Millisecond)
		m.ProfileCache(CacheMiss)
		m.SessionCleared("x")
		m.SetState("anonymous", []string{"anonymous"})
	})
}
