package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/logger"
)

// DefaultInterval is the polling cadence while playing.
const DefaultInterval = 150 * time.Millisecond

// Publisher receives every detection set the poller produces.
type Publisher interface {
	Publish(detection.Update)
}

// State is the poller's playback state.
type State string

const (
	StateActive State = "active"
	StatePaused State = "paused"
)

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithInterval sets the tick interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithDiagnostics registers a hook that sees every update, including the
// cause of each simulated fallback. It does not change what is published.
func WithDiagnostics(fn func(detection.Update)) Option {
	return func(p *Poller) { p.diagnostics = fn }
}

// WithSimulator replaces the fallback generator.
func WithSimulator(fn func(time.Time) detection.Set) Option {
	return func(p *Poller) { p.simulate = fn }
}

// Poller keeps the published detection set fresh while playing.
type Poller struct {
	fetcher     Fetcher
	publisher   Publisher
	clock       clock.Clock
	interval    time.Duration
	diagnostics func(detection.Update)
	simulate    func(time.Time) detection.Set

	// ctx is the parent of every in-flight poll. Pausing does not cancel it.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	ticker *clock.Ticker
	done   chan struct{}
	exited chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewPoller creates a paused poller. Call SetPlaying(true) to start ticking.
func NewPoller(fetcher Fetcher, publisher Publisher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		publisher: publisher,
		clock:     clock.New(),
		interval:  DefaultInterval,
		simulate:  detection.Simulate,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

// Interval returns the tick interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// State reports whether the poller is ticking.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		return StateActive
	}
	return StatePaused
}

// Playing reports whether the poller is active.
func (p *Poller) Playing() bool {
	return p.State() == StateActive
}

// SetPlaying drives the Active/Paused transition. Once a pause returns no
// further poll is dispatched; polls already dispatched still publish their
// result.
func (p *Poller) SetPlaying(playing bool) {
	if !playing {
		p.pause(false)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.ticker != nil {
		return
	}
	p.ticker = p.clock.Ticker(p.interval)
	p.done = make(chan struct{})
	p.exited = make(chan struct{})
	go p.run(p.ticker, p.done, p.exited)
	logger.Info("FeedPoller", "Active (interval=%v)", p.interval)
}

// pause stops the ticker and waits for its loop to exit. With final set the
// poller is also marked closed under the same lock.
func (p *Poller) pause(final bool) {
	p.mu.Lock()
	if final {
		p.closed = true
	}
	if p.ticker == nil {
		p.mu.Unlock()
		return
	}
	p.ticker.Stop()
	close(p.done)
	exited := p.exited
	p.ticker = nil
	p.done = nil
	p.exited = nil
	p.mu.Unlock()

	<-exited
	logger.Info("FeedPoller", "Paused")
}

// Toggle flips the playback state and returns the new value.
func (p *Poller) Toggle() bool {
	p.mu.Lock()
	playing := p.ticker == nil
	p.mu.Unlock()
	p.SetPlaying(playing)
	return p.Playing()
}

// Close pauses the poller and waits for in-flight polls. The poller cannot
// be restarted afterwards.
func (p *Poller) Close() {
	p.pause(true)
	p.wg.Wait()
	p.cancel()
}

func (p *Poller) run(ticker *clock.Ticker, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	for {
		select {
		case <-done:
			return
		case tick := <-ticker.C:
			if !p.dispatch(ticker, tick) {
				return
			}
		}
	}
}

// dispatch starts one poll without waiting for the previous one. It refuses
// ticks from a ticker that is no longer current, so a tick racing a pause
// is dropped.
func (p *Poller) dispatch(ticker *clock.Ticker, tick time.Time) bool {
	p.mu.Lock()
	if p.ticker != ticker {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.PollOnce(p.ctx, tick)
	}()
	return true
}

// PollOnce fetches once and publishes either the live set or, on any
// failure or empty answer, the simulated set for time t.
func (p *Poller) PollOnce(ctx context.Context, t time.Time) detection.Update {
	set, err := p.fetcher.Fetch(ctx)
	if err == nil && len(set) == 0 {
		err = ErrEmptyFeed
	}

	update := detection.Update{Set: set, Source: detection.SourceLive, At: t}
	if err != nil {
		if !errors.Is(err, ErrEmptyFeed) && !errors.Is(err, ErrFeedUnavailable) {
			err = errors.Join(ErrFeedUnavailable, err)
		}
		update = detection.Update{
			Set:    p.simulate(t),
			Source: detection.SourceSimulated,
			Cause:  err,
			At:     t,
		}
		logger.Debug("FeedPoller", "Using simulated detections: %v", err)
	}

	if p.diagnostics != nil {
		p.diagnostics(update)
	}
	p.publisher.Publish(update)
	return update
}
