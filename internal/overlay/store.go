package overlay

import (
	"sync"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/logger"
)

// Store owns the current detection set and notifies subscribers whenever
// it is replaced.
type Store struct {
	mu      sync.RWMutex
	current detection.Update
	version uint64
	subs    map[int]chan detection.Update
	nextSub int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]chan detection.Update)}
}

// Publish replaces the current set and notifies subscribers. Subscribers
// observe publishes in version order.
func (s *Store) Publish(u detection.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	u.Version = s.version
	s.current = u
	for _, ch := range s.subs {
		offerLatest(ch, u)
	}
}

// offerLatest delivers u without blocking, replacing an undelivered value.
func offerLatest(ch chan detection.Update, u detection.Update) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Current returns the latest update and its version. Version 0 means
// nothing was published yet.
func (s *Store) Current() (detection.Update, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.version
}

// Subscribe registers for change notifications. Slow subscribers only see
// the latest update.
func (s *Store) Subscribe() (int, <-chan detection.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan detection.Update, 1)
	s.subs[id] = ch

	logger.Debug("Store", "Subscriber #%d added (total: %d)", id, len(s.subs))
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
		logger.Debug("Store", "Subscriber #%d removed (remaining: %d)", id, len(s.subs))
	}
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
