package webmonitor

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/feed"
	"github.com/herdwatch/live-overlay/internal/logger"
	"github.com/herdwatch/live-overlay/internal/metrics"
	"github.com/herdwatch/live-overlay/internal/overlay"
	"github.com/herdwatch/live-overlay/internal/settings"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	statusInterval  = time.Second
	maxViewportSide = 4096
	maxRequestBytes = 64 << 10
)

// Server serves the overlay endpoints.
type Server struct {
	cfg                  Config
	store                *overlay.Store
	renderer             *overlay.Renderer
	monitor              *Monitor
	settings             settings.Store
	metrics              *metrics.Metrics
	broadcaster          *FrameBroadcaster
	detectionBroadcaster *DetectionBroadcaster
	blank                []byte

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer returns a configured overlay server. The poller publishes into
// store; the server only reads from it. Call Start before serving.
func NewServer(cfg Config, store *overlay.Store, poller *feed.Poller, st settings.Store, m *metrics.Metrics) *Server {
	cfg = cfg.normalized()
	renderer := overlay.NewRenderer()
	monitor := NewMonitor(store, poller, m, cfg.Viewport())

	blank, err := blankJPEG(cfg.ViewportWidth, cfg.ViewportHeight)
	if err != nil {
		logger.Warn("Server", "Failed to encode idle frame: %v", err)
	}

	return &Server{
		cfg:                  cfg,
		store:                store,
		renderer:             renderer,
		monitor:              monitor,
		settings:             st,
		metrics:              m,
		broadcaster:          NewFrameBroadcaster(store, renderer, monitor, cfg.JPEGQuality, m),
		detectionBroadcaster: NewDetectionBroadcaster(store),
		blank:                blank,
		closing:              make(chan struct{}),
	}
}

// Start attaches the broadcasters to the store.
func (s *Server) Start() {
	s.broadcaster.Start()
	s.detectionBroadcaster.Start()
}

// Close detaches the broadcasters and ends every streaming response.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
	s.broadcaster.Stop()
	s.detectionBroadcaster.Stop()
}

// Monitor exposes the server's state aggregator.
func (s *Server) Monitor() *Monitor {
	return s.monitor
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc(feed.LiveFeedPath, s.handleLiveFeed)
	mux.HandleFunc("/api/overlay.png", s.handleOverlayPNG)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/detections/stream", s.handleDetectionsStream)
	mux.HandleFunc("/ws/detections", s.handleDetectionsWebSocket)
	mux.HandleFunc("/api/playback", s.handlePlayback)
	mux.HandleFunc("/api/viewport", s.handleViewport)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)
	streamMJPEGFromChannel(w, r, frameCh, s.idleFrame, s.cfg.KeepaliveInterval)
}

// idleFrame is the last overlay frame, or the empty backdrop before the
// first redraw.
func (s *Server) idleFrame() []byte {
	if last := s.broadcaster.Last(); last != nil {
		return last
	}
	return s.blank
}

func (s *Server) handleLiveFeed(w http.ResponseWriter, r *http.Request) {
	current, _ := s.store.Current()
	writeJSON(w, feed.NewResponse(current.Set))
}

func (s *Server) handleOverlayPNG(w http.ResponseWriter, r *http.Request) {
	v := s.monitor.Viewport()
	q := r.URL.Query()
	if raw := q.Get("w"); raw != "" {
		n, err := parseSide(raw)
		if err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "invalid width: " + err.Error()}, http.StatusBadRequest)
			return
		}
		v.Width = n
	}
	if raw := q.Get("h"); raw != "" {
		n, err := parseSide(raw)
		if err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "invalid height: " + err.Error()}, http.StatusBadRequest)
			return
		}
		v.Height = n
	}

	current, _ := s.store.Current()
	raster := overlay.NewRaster(v, nil)
	s.renderer.Render(raster, current.Set)
	data, err := raster.PNG()
	if err != nil {
		s.metrics.EncodeErrors.Add(1)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.monitor.Snapshot())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, s.monitor.Snapshot()); err != nil {
			return
		}
		flusher.Flush()
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleDetectionsStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.detectionBroadcaster.Subscribe()
	defer s.detectionBroadcaster.Unsubscribe(id)
	s.metrics.EventClients.Add(1)
	defer s.metrics.EventClients.Add(-1)

	accept := r.Header.Get("Accept")
	useProtobuf := strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")

	streamDetectionEventsFromChannel(w, r, eventCh, useProtobuf, s.cfg.KeepaliveInterval)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.monitor.Playback())
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
		if err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "Invalid playback data"}, http.StatusBadRequest)
			return
		}
		// An empty body toggles, like the play/pause button.
		if len(strings.TrimSpace(string(body))) == 0 {
			playing := !s.monitor.Playback().Playing
			logger.Info("Server", "Playback toggled (playing=%t)", playing)
			writeJSON(w, s.monitor.SetPlaying(playing))
			return
		}
		var req struct {
			Playing *bool `json:"playing"`
		}
		if err := json.Unmarshal(body, &req); err != nil || req.Playing == nil {
			writeJSONWithStatus(w, map[string]any{"error": "Invalid playback data"}, http.StatusBadRequest)
			return
		}
		logger.Info("Server", "Playback set (playing=%t)", *req.Playing)
		writeJSON(w, s.monitor.SetPlaying(*req.Playing))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.monitor.Viewport())
	case http.MethodPost:
		var v detection.Viewport
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&v); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "Invalid viewport data"}, http.StatusBadRequest)
			return
		}
		if !validSide(v.Width) || !validSide(v.Height) {
			writeJSONWithStatus(w, map[string]any{
				"error": fmt.Sprintf("viewport must be between 1x1 and %dx%d", maxViewportSide, maxViewportSide),
			}, http.StatusBadRequest)
			return
		}
		s.monitor.SetViewport(v)
		// Redraw the current set at the new size without waiting for the next tick.
		if current, version := s.store.Current(); version > 0 {
			s.broadcaster.view.Redraw(current)
		}
		logger.Info("Server", "Viewport resized to %dx%d", v.Width, v.Height)
		writeJSON(w, v)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		current, err := s.settings.Load(r.Context())
		if err != nil {
			logger.Error("Settings", "Load failed: %v", err)
			writeJSONWithStatus(w, SettingsResponse{Error: err.Error()}, http.StatusInternalServerError)
			return
		}
		writeJSON(w, SettingsResponse{Success: true, Data: current.Values()})
	case http.MethodPost:
		var raw map[string]any
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&raw); err != nil {
			writeJSONWithStatus(w, SettingsResponse{Error: "Invalid settings data"}, http.StatusBadRequest)
			return
		}
		current, err := s.settings.Load(r.Context())
		if err != nil {
			logger.Error("Settings", "Load failed: %v", err)
			writeJSONWithStatus(w, SettingsResponse{Error: err.Error()}, http.StatusInternalServerError)
			return
		}
		next, err := settings.FromValues(current, stringValues(raw))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, settings.ErrInvalid) {
				status = http.StatusBadRequest
			}
			writeJSONWithStatus(w, SettingsResponse{Error: err.Error()}, status)
			return
		}
		if err := s.settings.Save(r.Context(), next); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, settings.ErrInvalid) {
				status = http.StatusBadRequest
			}
			logger.Error("Settings", "Save failed: %v", err)
			writeJSONWithStatus(w, SettingsResponse{Error: err.Error()}, status)
			return
		}
		logger.Info("Settings", "Settings saved for %q", next.FarmName)
		writeJSON(w, SettingsResponse{Success: true, Data: next.Values()})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// stringValues flattens a decoded JSON object to the string form settings
// travel in. Nulls are dropped.
func stringValues(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}

func parseSide(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if !validSide(n) {
		return 0, fmt.Errorf("%d outside 1..%d", n, maxViewportSide)
	}
	return n, nil
}

func validSide(n int) bool {
	return n >= 1 && n <= maxViewportSide
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
