package webmonitor

import (
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/feed"
	"github.com/herdwatch/live-overlay/internal/metrics"
	"github.com/herdwatch/live-overlay/internal/overlay"
)

// Monitor aggregates playback, feed and rendering state for the status API.
// It also owns the hosting viewport that views resize to.
type Monitor struct {
	startTime time.Time
	store     *overlay.Store
	poller    *feed.Poller
	metrics   *metrics.Metrics

	mu       sync.Mutex
	viewport detection.Viewport
}

// NewMonitor creates a Monitor over the given components.
func NewMonitor(store *overlay.Store, poller *feed.Poller, m *metrics.Metrics, viewport detection.Viewport) *Monitor {
	return &Monitor{
		startTime: time.Now(),
		store:     store,
		poller:    poller,
		metrics:   m,
		viewport:  viewport,
	}
}

// Viewport returns the current hosting viewport.
func (m *Monitor) Viewport() detection.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// SetViewport changes the hosting viewport. Views pick it up on their next
// redraw.
func (m *Monitor) SetViewport(v detection.Viewport) {
	m.mu.Lock()
	m.viewport = v
	m.mu.Unlock()
}

// SetPlaying drives the poller and records the new state.
func (m *Monitor) SetPlaying(playing bool) PlaybackState {
	m.poller.SetPlaying(playing)
	return m.Playback()
}

// Playback returns the current playback state.
func (m *Monitor) Playback() PlaybackState {
	state := m.poller.State()
	playing := state == feed.StateActive
	m.metrics.SetPlaying(playing)
	return PlaybackState{Playing: playing, State: string(state)}
}

// Snapshot returns the current monitor stats.
func (m *Monitor) Snapshot() MonitorStats {
	current, version := m.store.Current()
	playback := m.Playback()

	stats := MonitorStats{
		Playing:        playback.Playing,
		State:          playback.State,
		Source:         current.Source,
		Cause:          current.CauseText(),
		DetectionCount: len(current.Set),
		AtRiskCount:    current.Set.AtRiskCount(),
		Version:        version,
		UpdatedAt:      unixSeconds(current.At),
		LastLive:       "never",
		Polls:          m.metrics.Polls.Load(),
		LiveSets:       m.metrics.LiveSets.Load(),
		SimulatedSets:  m.metrics.SimulatedSets.Load(),
		Redraws:        m.metrics.Redraws.Load(),
		PollInterval:   m.poller.Interval().String(),
		Viewport:       m.Viewport(),
		Uptime:         strings.TrimSpace(humanize.RelTime(m.startTime, time.Now(), "", "")),
	}
	if last := m.metrics.LastLive(); !last.IsZero() {
		stats.LastLiveAt = unixSeconds(last)
		stats.LastLive = humanize.Time(last)
	}
	return stats
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMilli()) / 1000
}
