// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsIncomingTotal counts webhook call notifications by outcome of the
	// registry gate (proceed, duplicate, ignored, invalid).
	CallsIncomingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceagent_calls_incoming_total",
		Help: "Total incoming call notifications by gate result",
	}, []string{"result"})

	// CallAcceptTotal counts accept attempts by outcome.
	CallAcceptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceagent_call_accept_total",
		Help: "Total call accept attempts by result",
	}, []string{"result"})

	// CallAcceptDuration tracks accept request latencies.
	CallAcceptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceagent_call_accept_duration_seconds",
		Help:    "Latency of call accept requests",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// ActiveSessions tracks currently open streaming sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voiceagent_active_sessions",
		Help: "Number of currently open streaming sessions",
	})

	// SessionDuration tracks the lifetime of streaming sessions.
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceagent_session_duration_seconds",
		Help:    "Lifetime of streaming sessions from dial to teardown",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// PhaseTransitionsTotal counts entries into each scripted phase.
	PhaseTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceagent_phase_transitions_total",
		Help: "Total phase transitions by target phase",
	}, []string{"phase"})

	// UtteranceRetriesTotal counts watchdog-triggered utterance retries.
	UtteranceRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceagent_utterance_retries_total",
		Help: "Total scripted utterance retries triggered by the audio-start watchdog",
	}, []string{"phase"})

	// ChannelFailuresTotal counts terminal channel failures by kind.
	ChannelFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceagent_channel_failures_total",
		Help: "Total terminal streaming channel failures by kind",
	}, []string{"kind"})
)

// IncCallIncoming records the registry gate outcome for one notification.
func IncCallIncoming(result string) {
	CallsIncomingTotal.WithLabelValues(result).Inc()
}

// IncCallAccept records an accept attempt outcome.
func IncCallAccept(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	CallAcceptTotal.WithLabelValues(result).Inc()
}

// ObserveAcceptDuration records the latency of one accept request.
func ObserveAcceptDuration(d time.Duration) {
	CallAcceptDuration.Observe(d.Seconds())
}

// SessionStarted marks a streaming session as open.
func SessionStarted() {
	ActiveSessions.Inc()
}

// SessionEnded marks a streaming session as closed and records its lifetime.
func SessionEnded(lifetime time.Duration) {
	ActiveSessions.Dec()
	SessionDuration.Observe(lifetime.Seconds())
}

// IncPhaseTransition records entry into a phase.
func IncPhaseTransition(phase string) {
	PhaseTransitionsTotal.WithLabelValues(phase).Inc()
}

// IncUtteranceRetry records one watchdog retry for a phase.
func IncUtteranceRetry(phase string) {
	UtteranceRetriesTotal.WithLabelValues(phase).Inc()
}

// IncChannelFailure records a terminal channel failure.
func IncChannelFailure(kind string) {
	ChannelFailuresTotal.WithLabelValues(kind).Inc()
}
