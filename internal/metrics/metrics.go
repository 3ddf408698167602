package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/feed"
)

// Metrics holds all application metrics
type Metrics struct {
	// Feed counters
	Polls           atomic.Uint64
	LiveSets        atomic.Uint64
	SimulatedSets   atomic.Uint64
	FeedUnavailable atomic.Uint64
	EmptyFeed       atomic.Uint64

	// Current set
	Detections atomic.Uint64
	AtRisk     atomic.Uint64
	LastLiveAt atomic.Int64 // unix nanoseconds, 0 = never

	// Rendering
	Redraws         atomic.Uint64
	RenderLatencyUs atomic.Uint64
	FramesEncoded   atomic.Uint64
	EncodeErrors    atomic.Uint64

	// Stream clients
	FrameClients     atomic.Int64
	EventClients     atomic.Int64
	WebSocketClients atomic.Int64

	// Playback state
	Playing atomic.Uint64 // 0 = paused, 1 = active

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		fn,
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.counter("overlay_feed_polls_total", "Total detection feed polls completed", &m.Polls)
	m.counter("overlay_feed_live_sets_total", "Detection sets taken from the live feed", &m.LiveSets)
	m.counter("overlay_feed_simulated_sets_total", "Detection sets substituted by simulation", &m.SimulatedSets)
	m.counter("overlay_feed_unavailable_total", "Polls that failed to reach a usable feed", &m.FeedUnavailable)
	m.counter("overlay_feed_empty_total", "Polls answered with no detections", &m.EmptyFeed)

	m.gauge("overlay_detections", "Records in the current detection set",
		func() float64 { return float64(m.Detections.Load()) })
	m.gauge("overlay_detections_at_risk", "At-risk records in the current detection set",
		func() float64 { return float64(m.AtRisk.Load()) })
	m.gauge("overlay_feed_last_live_timestamp_seconds", "Unix time of the last live detection set",
		func() float64 { return float64(m.LastLiveAt.Load()) / float64(time.Second) })

	m.counter("overlay_redraws_total", "Overlay redraw passes", &m.Redraws)
	m.gauge("overlay_render_latency_us", "Duration of the last redraw in microseconds",
		func() float64 { return float64(m.RenderLatencyUs.Load()) })
	m.counter("overlay_frames_encoded_total", "Overlay frames encoded for streaming", &m.FramesEncoded)
	m.counter("overlay_encode_errors_total", "Overlay frame encoding failures", &m.EncodeErrors)

	m.gauge("overlay_stream_clients", "Connected MJPEG clients",
		func() float64 { return float64(m.FrameClients.Load()) })
	m.gauge("overlay_event_clients", "Connected detection event (SSE) clients",
		func() float64 { return float64(m.EventClients.Load()) })
	m.gauge("overlay_websocket_clients", "Connected detection WebSocket clients",
		func() float64 { return float64(m.WebSocketClients.Load()) })

	m.gauge("overlay_playing", "Feed polling active (0=paused, 1=active)",
		func() float64 { return float64(m.Playing.Load()) })
}

// RecordUpdate accounts for one published detection update.
func (m *Metrics) RecordUpdate(u detection.Update) {
	m.Polls.Add(1)
	m.Detections.Store(uint64(len(u.Set)))
	m.AtRisk.Store(uint64(u.Set.AtRiskCount()))

	if u.Source == detection.SourceLive {
		m.LiveSets.Add(1)
		m.LastLiveAt.Store(u.At.UnixNano())
		return
	}

	m.SimulatedSets.Add(1)
	switch {
	case errors.Is(u.Cause, feed.ErrEmptyFeed):
		m.EmptyFeed.Add(1)
	case u.Cause != nil:
		m.FeedUnavailable.Add(1)
	}
}

// RecordRedraw accounts for one completed redraw pass.
func (m *Metrics) RecordRedraw(took time.Duration) {
	m.Redraws.Add(1)
	m.RenderLatencyUs.Store(uint64(took.Microseconds()))
}

// SetPlaying records the playback state.
func (m *Metrics) SetPlaying(playing bool) {
	if playing {
		m.Playing.Store(1)
		return
	}
	m.Playing.Store(0)
}

// LastLive returns when the last live set was seen, or the zero time.
func (m *Metrics) LastLive() time.Time {
	ns := m.LastLiveAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
