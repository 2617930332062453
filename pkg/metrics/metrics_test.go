package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveTransition("match_succeeded", "assigned")
	m.ObserveTransition("match_succeeded", "assigned")
	m.ObserveMatch("graphics", "assigned", 3*time.Millisecond)
	m.ObservePayment("deposit_40", "applied")
	m.IncWorkerStat("w1", "assigned")
	m.ObserveJob("assignment-expiry-sweep", "failed", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("match_succeeded", "assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchAttempts.WithLabelValues("graphics", "assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Payments.WithLabelValues("deposit_40", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerStats.WithLabelValues("w1", "assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("assignment-expiry-sweep", "failed")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransition("cancelled", "cancelled")
		m.ObserveEffect("admin_alert", "delivered")
		m.ObserveError("confirm_payment", "phase_mismatch")
		m.ObserveJob("assignment-expiry-sweep", "ok", time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveEffect("admin_alert", "delivered")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "atelier_side_effects_total"))
}
