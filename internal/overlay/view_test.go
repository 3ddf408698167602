package overlay

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herdwatch/live-overlay/internal/detection"
)

func TestStorePublishNotifiesLatest(t *testing.T) {
	s := NewStore()
	_, version := s.Current()
	assert.Zero(t, version)

	id, ch := s.Subscribe()
	assert.Equal(t, 1, s.Subscribers())

	s.Publish(detection.Update{Set: detection.Set{{Tag: "old"}}})
	s.Publish(detection.Update{Set: detection.Set{{Tag: "new"}}})

	got := <-ch
	assert.Equal(t, "new", got.Set[0].Tag, "slow subscriber sees only the latest")
	assert.Equal(t, uint64(2), got.Version, "update carries the version it was published as")
	select {
	case u := <-ch:
		t.Fatalf("unexpected extra update %v", u)
	default:
	}

	cur, version := s.Current()
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, version, cur.Version)
	assert.Equal(t, "new", cur.Set[0].Tag)

	s.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, s.Subscribers())
	s.Unsubscribe(id)
}

func TestStoreConcurrentPublishers(t *testing.T) {
	s := NewStore()
	_, ch := s.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Publish(detection.Update{Set: detection.Simulate(time.Unix(int64(i), 0))})
		}(i)
	}
	wg.Wait()

	_, version := s.Current()
	assert.Equal(t, uint64(16), version)
	u := <-ch
	assert.Len(t, u.Set, 3)
	assert.Equal(t, uint64(16), u.Version, "the last delivered update is the last published one")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestViewRedrawsOnPublishAndResyncsViewport(t *testing.T) {
	store := NewStore()
	rec := NewRecorder(detection.Viewport{Width: 10, Height: 10})

	var host atomic.Value
	host.Store(detection.Viewport{Width: 640, Height: 480})
	view := NewView(store, NewRenderer(), rec, func() detection.Viewport {
		return host.Load().(detection.Viewport)
	})

	var drawn atomic.Int32
	view.OnDraw(func(u detection.Update, s Surface, took time.Duration) {
		drawn.Add(1)
	})
	view.Start()
	defer view.Detach()

	assert.Zero(t, view.Redraws(), "nothing published yet")

	store.Publish(detection.Update{Set: detection.Set{{Tag: "COW-1", BoxX: 0.5, BoxY: 0.5, BoxW: 0.1, BoxH: 0.1}}})
	waitFor(t, func() bool { return drawn.Load() == 1 })
	assert.Equal(t, detection.Viewport{Width: 640, Height: 480}, rec.Size())
	rects := opsOf(rec.Ops(), OpStrokeRect)
	require.Len(t, rects, 1)
	assert.Equal(t, 320.0, rects[0].Rect.X)

	host.Store(detection.Viewport{Width: 100, Height: 50})
	store.Publish(detection.Update{Set: detection.Set{{Tag: "COW-1", BoxX: 0.5, BoxY: 0.5, BoxW: 0.1, BoxH: 0.1}}})
	waitFor(t, func() bool { return drawn.Load() == 2 })
	assert.Equal(t, detection.Viewport{Width: 100, Height: 50}, rec.Size())
	assert.Equal(t, 50.0, opsOf(rec.Ops(), OpStrokeRect)[0].Rect.X)

	store.Publish(detection.Update{})
	waitFor(t, func() bool { return drawn.Load() == 3 })
	assert.Equal(t, []Op{{Kind: OpClear}}, rec.Ops())
}

func TestViewStartDrawsCurrentSet(t *testing.T) {
	store := NewStore()
	store.Publish(detection.Update{Set: detection.Simulate(time.Unix(9, 0))})

	rec := NewRecorder(detection.Viewport{Width: 320, Height: 240})
	view := NewView(store, NewRenderer(), rec, nil)
	view.Start()
	defer view.Detach()

	assert.Equal(t, uint64(1), view.Redraws())
	assert.Equal(t, 3, rec.Count(OpStrokeRect))
}

func TestDetachedViewNeverDraws(t *testing.T) {
	store := NewStore()
	rec := NewRecorder(detection.Viewport{Width: 32, Height: 32})
	view := NewView(store, NewRenderer(), rec, nil)
	view.Start()

	view.Detach()
	view.Detach()
	assert.Zero(t, store.Subscribers())

	store.Publish(detection.Update{Set: detection.Simulate(time.Unix(1, 0))})
	assert.False(t, view.Redraw(detection.Update{Set: detection.Simulate(time.Unix(2, 0))}))
	assert.Empty(t, rec.Ops())
	assert.Zero(t, view.Redraws())

	view.Start()
	assert.Zero(t, store.Subscribers(), "a detached view cannot be restarted")
}
