// Package metrics holds the Prometheus collectors of the lifecycle engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tenantcrm"

type Metrics struct {
	transitions      *prometheus.CounterVec
	gateDecisions    *prometheus.CounterVec
	usageUnavailable *prometheus.CounterVec
	lockContention   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_transitions_total",
				Help:      "Subscription lifecycle events by event and result",
			},
			[]string{"event", "result"},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Capability checks by feature and decision reason",
			},
			[]string{"feature", "reason"},
		),
		usageUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_unavailable_total",
				Help:      "Usage counter failures by resource",
			},
			[]string{"resource"},
		),
		lockContention: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tenant_lock_conflicts_total",
				Help:      "Writes rejected because the tenant write lock was held",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.gateDecisions, m.usageUnavailable, m.lockContention)
	}
	return m
}

func (m *Metrics) Transition(event, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(label(event), label(result)).Inc()
}

func (m *Metrics) GateDecision(feature, reason string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(label(feature), label(reason)).Inc()
}

func (m *Metrics) UsageUnavailable(resource string) {
	if m == nil {
		return
	}
	m.usageUnavailable.WithLabelValues(label(resource)).Inc()
}

func (m *Metrics) LockConflict() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

func label(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.ReplaceAll(s, " ", "_")
}
