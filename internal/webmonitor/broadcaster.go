package webmonitor

import (
	"encoding/base64"
	"image/color"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/logger"
	"github.com/herdwatch/live-overlay/internal/metrics"
	"github.com/herdwatch/live-overlay/internal/overlay"
)

// backdrop is painted under the overlay on streamed frames.
var backdrop = color.RGBA{R: 24, G: 28, B: 36, A: 255}

// FrameBroadcaster redraws the overlay on every detection change and fans
// the encoded JPEG out to MJPEG clients.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	last    []byte

	view    *overlay.View
	quality int
	metrics *metrics.Metrics
}

// NewFrameBroadcaster creates a broadcaster drawing onto its own raster.
func NewFrameBroadcaster(store *overlay.Store, renderer *overlay.Renderer, monitor *Monitor, quality int, m *metrics.Metrics) *FrameBroadcaster {
	fb := &FrameBroadcaster{
		clients: make(map[int]chan []byte),
		quality: quality,
		metrics: m,
	}
	surface := overlay.NewRaster(monitor.Viewport(), backdrop)
	fb.view = overlay.NewView(store, renderer, surface, monitor.Viewport)
	fb.view.OnDraw(fb.encodeAndBroadcast)
	return fb
}

// Subscribe adds a new client and returns a channel for receiving frames.
// The latest frame, if any, is delivered immediately.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2) // Buffer 2 frames to avoid blocking
	if fb.last != nil {
		ch <- fb.last
	}
	fb.clients[id] = ch
	fb.metrics.FrameClients.Add(1)

	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		fb.metrics.FrameClients.Add(-1)
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
	}
}

// Start begins following the store.
func (fb *FrameBroadcaster) Start() {
	fb.view.Start()
}

// Stop detaches the view and disconnects every client.
func (fb *FrameBroadcaster) Stop() {
	fb.view.Detach()

	fb.mu.Lock()
	defer fb.mu.Unlock()
	for id, ch := range fb.clients {
		close(ch)
		delete(fb.clients, id)
		fb.metrics.FrameClients.Add(-1)
	}
}

// encodeAndBroadcast runs after every redraw. The frame is encoded even
// without clients: while paused it is the frozen overlay late viewers and
// keepalives receive.
func (fb *FrameBroadcaster) encodeAndBroadcast(u detection.Update, s overlay.Surface, took time.Duration) {
	fb.metrics.RecordRedraw(took)

	raster, ok := s.(*overlay.Raster)
	if !ok {
		return
	}
	jpegData, err := raster.JPEG(fb.quality)
	if err != nil {
		fb.metrics.EncodeErrors.Add(1)
		logger.Error("FrameBroadcaster", "JPEG encode error: %v", err)
		return
	}
	fb.metrics.FramesEncoded.Add(1)
	fb.broadcast(jpegData)
}

// Last returns the most recent overlay frame, or nil before the first
// redraw.
func (fb *FrameBroadcaster) Last() []byte {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.last
}

func (fb *FrameBroadcaster) broadcast(data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.last = data
	for _, ch := range fb.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // structpb.Struct, base64 encoded for SSE
}

// DetectionBroadcaster fans detection updates out to SSE and WebSocket
// clients.
type DetectionBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	last    *SerializedEvent

	store   *overlay.Store
	stop    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

// NewDetectionBroadcaster creates a broadcaster for detection events.
func NewDetectionBroadcaster(store *overlay.Store) *DetectionBroadcaster {
	return &DetectionBroadcaster{
		clients: make(map[int]chan *SerializedEvent),
		store:   store,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Subscribe adds a new client. The latest event, if any, is delivered
// immediately.
func (db *DetectionBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := db.nextID
	db.nextID++
	ch := make(chan *SerializedEvent, 2) // Buffer 2 events to avoid blocking
	if db.last != nil {
		ch <- db.last
	}
	db.clients[id] = ch

	logger.Debug("DetectionBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(db.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (db *DetectionBroadcaster) Unsubscribe(id int) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if ch, ok := db.clients[id]; ok {
		close(ch)
		delete(db.clients, id)
		logger.Debug("DetectionBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(db.clients))
	}
}

// Start begins the detection event loop.
func (db *DetectionBroadcaster) Start() {
	db.mu.Lock()
	if db.started || db.stopped {
		db.mu.Unlock()
		return
	}
	db.started = true
	db.mu.Unlock()

	id, updates := db.store.Subscribe()
	if u, version := db.store.Current(); version > 0 {
		db.processAndBroadcast(u)
	}
	go db.run(id, updates)
}

// Stop halts the broadcaster and disconnects every client.
func (db *DetectionBroadcaster) Stop() {
	db.mu.Lock()
	if db.stopped {
		db.mu.Unlock()
		return
	}
	db.stopped = true
	started := db.started
	close(db.stop)
	db.mu.Unlock()
	if started {
		<-db.done
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for id, ch := range db.clients {
		close(ch)
		delete(db.clients, id)
	}
}

func (db *DetectionBroadcaster) run(id int, updates <-chan detection.Update) {
	defer close(db.done)
	defer db.store.Unsubscribe(id)
	logger.Info("DetectionBroadcaster", "Starting detection event broadcaster")

	for {
		select {
		case <-db.stop:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			db.processAndBroadcast(u)
		}
	}
}

// processAndBroadcast pre-serializes the update to both formats and broadcasts
func (db *DetectionBroadcaster) processAndBroadcast(u detection.Update) {
	event, err := serializeEvent(newDetectionEvent(u))
	if err != nil {
		logger.Error("DetectionBroadcaster", "Serialize error: %v", err)
		return
	}
	db.broadcast(event)
}

func serializeEvent(ev DetectionEvent) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	pbEvent, err := structpb.NewStruct(eventFields(ev))
	if err != nil {
		return nil, err
	}
	pbData, err := proto.Marshal(pbEvent)
	if err != nil {
		return nil, err
	}

	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// eventFields converts an event into the generic values structpb accepts.
func eventFields(ev DetectionEvent) map[string]interface{} {
	detections := make([]interface{}, len(ev.Detections))
	for i, d := range ev.Detections {
		detections[i] = map[string]interface{}{
			"tag":         d.Tag,
			"boxX":        d.BoxX,
			"boxY":        d.BoxY,
			"boxW":        d.BoxW,
			"boxH":        d.BoxH,
			"confidence":  d.Confidence,
			"healthScore": d.HealthScore,
		}
	}
	return map[string]interface{}{
		"version":    ev.Version,
		"timestamp":  ev.Timestamp,
		"source":     string(ev.Source),
		"cause":      ev.Cause,
		"at_risk":    ev.AtRisk,
		"detections": detections,
	}
}

func (db *DetectionBroadcaster) broadcast(event *SerializedEvent) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.last = event
	for _, ch := range db.clients {
		select {
		case ch <- event:
		default:
			// Client too slow, skip this event for this client
		}
	}
}
