package webmonitor

import "github.com/herdwatch/live-overlay/internal/detection"

// MonitorStats is the payload of /api/status.
type MonitorStats struct {
	Playing        bool               `json:"playing"`
	State          string             `json:"state"`
	Source         detection.Source   `json:"source"`
	Cause          string             `json:"cause,omitempty"`
	DetectionCount int                `json:"detection_count"`
	AtRiskCount    int                `json:"at_risk_count"`
	Version        uint64             `json:"version"`
	UpdatedAt      float64            `json:"updated_at"`
	LastLiveAt     float64            `json:"last_live_at"`
	LastLive       string             `json:"last_live"`
	Polls          uint64             `json:"polls"`
	LiveSets       uint64             `json:"live_sets"`
	SimulatedSets  uint64             `json:"simulated_sets"`
	Redraws        uint64             `json:"redraws"`
	PollInterval   string             `json:"poll_interval"`
	Viewport       detection.Viewport `json:"viewport"`
	Uptime         string             `json:"uptime"`
}

// DetectionEvent is the payload for /api/detections/stream and /ws/detections.
type DetectionEvent struct {
	Version    uint64           `json:"version"`
	Timestamp  float64          `json:"timestamp"`
	Source     detection.Source `json:"source"`
	Cause      string           `json:"cause,omitempty"`
	AtRisk     int              `json:"at_risk"`
	Detections detection.Set    `json:"detections"`
}

// PlaybackState is the payload of /api/playback.
type PlaybackState struct {
	Playing bool   `json:"playing"`
	State   string `json:"state"`
}

// SettingsResponse mirrors the settings service wire shape.
type SettingsResponse struct {
	Success bool              `json:"success"`
	Data    map[string]string `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func newDetectionEvent(u detection.Update) DetectionEvent {
	set := u.Set
	if set == nil {
		set = detection.Set{}
	}
	return DetectionEvent{
		Version:    u.Version,
		Timestamp:  unixSeconds(u.At),
		Source:     u.Source,
		Cause:      u.CauseText(),
		AtRisk:     set.AtRiskCount(),
		Detections: set,
	}
}
