package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brainduel"

// Metrics holds the Prometheus collectors for the game loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	packets        *prometheus.CounterVec
	drops          *prometheus.CounterVec
	storageErrors  *prometheus.CounterVec
	matchesStarted *prometheus.CounterVec
	matchesSettled *prometheus.CounterVec
	sessions       prometheus.Gauge
	matches        prometheus.Gauge
	waiting        *prometheus.GaugeVec
	tickDuration   prometheus.Histogram
	storageUp      prometheus.Gauge
}

// NewMetrics registers the game collectors with reg.
//
// Precondition: reg must be non-nil and must not already hold these collectors.
// Postcondition: Returns a Metrics whose collectors are all registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		packets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Inbound packets decoded, by command.",
		}, []string{"command"}),
		drops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_dropped_total",
			Help:      "Connections terminated by the server, by reason class.",
		}, []string{"reason"}),
		storageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Failed storage calls, by operation.",
		}, []string{"op"}),
		matchesStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Matches created by the matchmaking queue.",
		}, []string{"mode"}),
		matchesSettled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_settled_total",
			Help:      "Matches that reached settlement.",
		}, []string{"mode"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Connected player sessions.",
		}),
		matches: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matches",
			Help:      "Live matches.",
		}),
		waiting: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_waiting",
			Help:      "Sessions waiting in a matchmaking slot, by mode.",
		}, []string{"mode"}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one server loop tick, including the transport poll.",
			Buckets:   []float64{.001, .005, .01, .015, .025, .05, .1, .25, .5, 1, 5},
		}),
		storageUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_up",
			Help:      "1 when the last database health check succeeded.",
		}),
	}
}

// Mode returns the label value for a matchmaking mode.
func Mode(competitive bool) string {
	if competitive {
		return "competitive"
	}
	return "casual"
}

// PacketReceived counts one decoded inbound command.
func (m *Metrics) PacketReceived(command string) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(command).Inc()
}

// ConnectionDropped counts one server-initiated disconnect.
func (m *Metrics) ConnectionDropped(reason string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(reason).Inc()
}

// StorageFailed counts one failed storage call.
func (m *Metrics) StorageFailed(op string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op).Inc()
}

// MatchStarted counts one new match.
func (m *Metrics) MatchStarted(competitive bool) {
	if m == nil {
		return
	}
	m.matchesStarted.WithLabelValues(Mode(competitive)).Inc()
}

// MatchSettled counts one settled match.
func (m *Metrics) MatchSettled(competitive bool) {
	if m == nil {
		return
	}
	m.matchesSettled.WithLabelValues(Mode(competitive)).Inc()
}

// SetLiveState records the current registry, match and queue sizes.
func (m *Metrics) SetLiveState(sessions, matches int, casualWaiting, competitiveWaiting bool) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(sessions))
	m.matches.Set(float64(matches))
	m.waiting.WithLabelValues(Mode(false)).Set(boolGauge(casualWaiting))
	m.waiting.WithLabelValues(Mode(true)).Set(boolGauge(competitiveWaiting))
}

// ObserveTick records the duration of one loop tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

// SetStorageHealthy records the outcome of a database health check.
func (m *Metrics) SetStorageHealthy(ok bool) {
	if m == nil {
		return
	}
	m.storageUp.Set(boolGauge(ok))
}

// Handler returns an HTTP handler exposing everything gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
