// Package metrics exposes the Prometheus collectors of the orchestration engine.
// All methods are safe on a nil *Metrics.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "concierge"

// Metrics groups the engine collectors.
type Metrics struct {
	matches         *prometheus.CounterVec
	recalls         *prometheus.CounterVec
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	escalations     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	turnTransitions *prometheus.CounterVec
	widgetSessions  prometheus.Gauge
	droppedDispatch prometheus.Counter
	rateLimited     prometheus.Counter
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNewMetrics registers the collectors with reg, reusing collectors that
// are already registered under the same name. Any other registration error
// panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "matcher", Name: "results_total",
			Help: "Knowledge match results by match type (fallback when nothing cleared the floor).",
		}, []string{"match_type"}),
		recalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "memory", Name: "recalls_total",
			Help: "Learned response lookups by outcome.",
		}, []string{"outcome"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "backend", Name: "requests_total",
			Help: "Generative backend calls by transport and status.",
		}, []string{"transport", "status"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "backend", Name: "request_duration_seconds",
			Help:    "Generative backend call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "escalation", Name: "tickets_total",
			Help: "Escalation tickets by reason and urgency.",
		}, []string{"reason", "urgency"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "escalation", Name: "notifications_total",
			Help: "Best-effort notifications by channel and status.",
		}, []string{"channel", "status"}),
		turnTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "turn", Name: "transitions_total",
			Help: "Widget UI mode transitions.",
		}, []string{"from", "to"}),
		widgetSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "turn", Name: "active_sessions",
			Help: "Websocket widget sessions currently connected.",
		}),
		droppedDispatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "dropped_total",
			Help: "Fire-and-forget jobs dropped because the dispatcher was full or stopped.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		}),
	}

	m.matches = register(reg, m.matches)
	m.recalls = register(reg, m.recalls)
	m.backendRequests = register(reg, m.backendRequests)
	m.backendDuration = register(reg, m.backendDuration)
	m.escalations = register(reg, m.escalations)
	m.notifications = register(reg, m.notifications)
	m.turnTransitions = register(reg, m.turnTransitions)
	m.widgetSessions = register(reg, m.widgetSessions)
	m.droppedDispatch = register(reg, m.droppedDispatch)
	m.rateLimited = register(reg, m.rateLimited)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveMatch counts a matcher result.
func (m *Metrics) ObserveMatch(matchType string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(matchType).Inc()
}

// ObserveRecall counts a memory lookup outcome (miss, found, answered).
func (m *Metrics) ObserveRecall(outcome string) {
	if m == nil {
		return
	}
	m.recalls.WithLabelValues(outcome).Inc()
}

// ObserveBackend records one generative backend call.
func (m *Metrics) ObserveBackend(transport string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.backendRequests.WithLabelValues(transport, status).Inc()
	m.backendDuration.WithLabelValues(transport).Observe(d.Seconds())
}

// ObserveEscalation counts a created ticket.
func (m *Metrics) ObserveEscalation(reason, urgency string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(reason, urgency).Inc()
}

// ObserveNotification counts a notification attempt.
func (m *Metrics) ObserveNotification(channel string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}

// ObserveTransition counts a UI mode change.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.turnTransitions.WithLabelValues(from, to).Inc()
}

// WidgetSessionStarted increments the connected widget gauge.
func (m *Metrics) WidgetSessionStarted() {
	if m == nil {
		return
	}
	m.widgetSessions.Inc()
}

// WidgetSessionEnded decrements the connected widget gauge.
func (m *Metrics) WidgetSessionEnded() {
	if m == nil {
		return
	}
	m.widgetSessions.Dec()
}

// DispatchDropped counts a dropped fire-and-forget job.
func (m *Metrics) DispatchDropped() {
	if m == nil {
		return
	}
	m.droppedDispatch.Inc()
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
