package overlay

import (
	"sync"
	"time"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/logger"
)

// ViewportFunc reports the hosting element's current pixel size.
type ViewportFunc func() detection.Viewport

// AfterDrawFunc runs after every completed redraw, still holding the view.
type AfterDrawFunc func(u detection.Update, s Surface, took time.Duration)

// View keeps one surface in sync with a Store: every published update is
// redrawn after resizing the surface to the host viewport.
type View struct {
	store     *Store
	renderer  *Renderer
	surface   Surface
	viewport  ViewportFunc
	afterDraw AfterDrawFunc

	mu       sync.Mutex
	started  bool
	detached bool
	subID    int
	done     chan struct{}
	redraws  uint64
}

// NewView binds surface to store. A nil viewport keeps the surface size.
func NewView(store *Store, renderer *Renderer, surface Surface, viewport ViewportFunc) *View {
	if viewport == nil {
		viewport = surface.Size
	}
	return &View{
		store:    store,
		renderer: renderer,
		surface:  surface,
		viewport: viewport,
	}
}

// OnDraw sets the after-draw hook. Call before Start.
func (v *View) OnDraw(fn AfterDrawFunc) {
	v.mu.Lock()
	v.afterDraw = fn
	v.mu.Unlock()
}

// Start draws the current set and then follows the store until Detach.
func (v *View) Start() {
	v.mu.Lock()
	if v.started || v.detached {
		v.mu.Unlock()
		return
	}
	v.started = true
	id, ch := v.store.Subscribe()
	v.subID = id
	v.done = make(chan struct{})
	v.mu.Unlock()

	if u, version := v.store.Current(); version > 0 {
		v.Redraw(u)
	}
	go v.run(ch)
}

func (v *View) run(ch <-chan detection.Update) {
	defer close(v.done)
	for u := range ch {
		v.Redraw(u)
	}
}

// Redraw synchronously resizes and repaints the surface. It returns false
// once the view is detached.
func (v *View) Redraw(u detection.Update) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.detached {
		return false
	}

	start := time.Now()
	if want := v.viewport(); want != v.surface.Size() {
		logger.Debug("OverlayView", "Resizing surface to %dx%d", want.Width, want.Height)
		v.surface.Resize(want)
	}
	v.renderer.Render(v.surface, u.Set)
	v.redraws++

	if v.afterDraw != nil {
		v.afterDraw(u, v.surface, time.Since(start))
	}
	return true
}

// Redraws returns the number of completed redraws.
func (v *View) Redraws() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.redraws
}

// Detach stops following the store. Late updates never reach the surface.
func (v *View) Detach() {
	v.mu.Lock()
	if v.detached {
		v.mu.Unlock()
		return
	}
	v.detached = true
	started := v.started
	v.mu.Unlock()

	if started {
		v.store.Unsubscribe(v.subID)
		<-v.done
	}
}
