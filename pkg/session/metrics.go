package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chriscow/voicerelay-go/pkg/realtime"
)

const metricsNamespace = "voicerelay"

// Reasons a remote audio frame never reached the speaker.
const (
	dropUserSpeaking = "user_speaking"
	dropInvalid      = "invalid"
	dropInterrupted  = "interrupted"
	dropOverflow     = "overflow"
)

// Metrics collects per-session counters. The zero value is not usable; a nil
// *Metrics records nothing.
type Metrics struct {
	events        *prometheus.CounterVec
	interruptions prometheus.Counter
	dropped       *prometheus.CounterVec
	functionCalls *prometheus.CounterVec
	framesSent    prometheus.Counter
	queued        prometheus.Gauge
}

// NewMetrics registers the session collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "Inbound realtime events by kind",
			},
			[]string{"kind"},
		),
		interruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "interruptions_total",
			Help:      "Times user speech cancelled or flushed remote audio",
		}),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dropped_frames_total",
				Help:      "Remote audio frames discarded before rendering",
			},
			[]string{"reason"},
		),
		functionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "function_calls_total",
				Help:      "Function calls dispatched, by name and outcome",
			},
			[]string{"name", "outcome"},
		),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "captured_frames_sent_total",
			Help:      "Captured frames forwarded to the service",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "playback_queued_frames",
			Help:      "Frames waiting in the playback queue",
		}),
	}

	reg.MustRegister(m.events, m.interruptions, m.dropped, m.functionCalls, m.framesSent, m.queued)
	return m
}

func (m *Metrics) event(k realtime.Kind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) interrupted() {
	if m == nil {
		return
	}
	m.interruptions.Inc()
}

func (m *Metrics) drop(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) functionCall(name, outcome string) {
	if m == nil {
		return
	}
	m.functionCalls.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) frameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

func (m *Metrics) setQueued(n int) {
	if m == nil {
		return
	}
	m.queued.Set(float64(n))
}
