package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Transition("upgrade", "ok")
	m.Transition("upgrade", "ok")
	m.Transition("activate", "invalid_transition")
	m.GateDecision("lead_management", "limit_reached")
	m.UsageUnavailable("storageMB")
	m.LockConflict()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("upgrade", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("activate", "invalid_transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateDecisions.WithLabelValues("lead_management", "limit_reached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.usageUnavailable.WithLabelValues("storageMB")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockContention))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Transition("upgrade", "ok")
		m.GateDecision("", "")
		m.UsageUnavailable("users")
		m.LockConflict()
	})
}
