// ABOUTME: Thread-safe deadline table for deferred purges.
// ABOUTME: A single sweeper goroutine fires expirations; entries are cancellable and bounded.

package retention

import (
	"container/list"
	"sync"
	"time"
)

// DefaultInterval is how often the sweeper checks for expired entries.
const DefaultInterval = time.Minute

// Options configures a Scheduler.
type Options struct {
	// Interval between sweeps. Zero means DefaultInterval.
	Interval time.Duration
	// MaxPending bounds the number of pending entries. When full, the
	// oldest scheduled entry is expired early to make room. Zero means unbounded.
	MaxPending int
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
	// OnExpire is called once for every entry whose deadline passes.
	// It is never called while the scheduler lock is held.
	OnExpire func(key string)
}

// pendingEntry stores the deadline and list element for a scheduled key.
type pendingEntry struct {
	deadline time.Time
	element  *list.Element
}

// Scheduler tracks per-key deadlines and fires OnExpire when they pass.
// Uses a doubly-linked list to keep scheduling order for O(1) eviction.
type Scheduler struct {
	mu       sync.Mutex
	pending  map[string]*pendingEntry
	order    *list.List // keys in scheduling order (oldest at front)
	now      func() time.Time
	onExpire func(key string)
	max      int
	done     chan struct{}
	closed   bool
}

// New creates a Scheduler and starts its sweeper goroutine.
func New(opts Options) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	onExpire := opts.OnExpire
	if onExpire == nil {
		onExpire = func(string) {}
	}

	s := &Scheduler{
		pending:  make(map[string]*pendingEntry),
		order:    list.New(),
		now:      now,
		onExpire: onExpire,
		max:      opts.MaxPending,
		done:     make(chan struct{}),
	}
	go s.sweep(interval)
	return s
}

// Schedule arms (or re-arms) the deadline for key to now+after.
// Returns false if the scheduler is closed.
func (s *Scheduler) Schedule(key string, after time.Duration) bool {
	var evicted []string

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	deadline := s.now().Add(after)
	if entry, ok := s.pending[key]; ok {
		entry.deadline = deadline
		s.order.MoveToBack(entry.element)
		s.mu.Unlock()
		return true
	}

	for s.max > 0 && len(s.pending) >= s.max {
		oldest, ok := s.removeOldestLocked()
		if !ok {
			break
		}
		evicted = append(evicted, oldest)
	}

	elem := s.order.PushBack(key)
	s.pending[key] = &pendingEntry{deadline: deadline, element: elem}
	s.mu.Unlock()

	for _, k := range evicted {
		s.onExpire(k)
	}
	return true
}

// Cancel removes the pending entry for key. Returns true if one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[key]
	if !ok {
		return false
	}
	s.order.Remove(entry.element)
	delete(s.pending, key)
	return true
}

// Pending reports whether key has an armed deadline, expired or not.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Deadline returns the deadline for key, if pending.
func (s *Scheduler) Deadline(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[key]
	if !ok {
		return time.Time{}, false
	}
	return entry.deadline, true
}

// Reap fires OnExpire for key if its deadline has passed and reports whether
// it did. Callers use it to check expiry lazily before the sweeper runs.
func (s *Scheduler) Reap(key string) bool {
	s.mu.Lock()
	entry, ok := s.pending[key]
	if !ok || s.now().Before(entry.deadline) {
		s.mu.Unlock()
		return false
	}
	s.order.Remove(entry.element)
	delete(s.pending, key)
	s.mu.Unlock()

	s.onExpire(key)
	return true
}

// Sweep expires every entry whose deadline has passed and returns how many fired.
func (s *Scheduler) Sweep() int {
	s.mu.Lock()
	now := s.now()
	var expired []string
	for key, entry := range s.pending {
		if !now.Before(entry.deadline) {
			s.order.Remove(entry.element)
			delete(s.pending, key)
			expired = append(expired, key)
		}
	}
	s.mu.Unlock()

	for _, key := range expired {
		s.onExpire(key)
	}
	return len(expired)
}

// Len returns the number of pending entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops the sweeper and abandons all pending entries without firing
// them. It is safe to call multiple times.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	close(s.done)
	s.closed = true
	s.pending = make(map[string]*pendingEntry)
	s.order.Init()
}

// removeOldestLocked drops the front of the order list. Must be called with mu held.
func (s *Scheduler) removeOldestLocked() (string, bool) {
	front := s.order.Front()
	if front == nil {
		return "", false
	}
	key, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.pending, key)
	return key, true
}

// sweep runs in a background goroutine until Close.
func (s *Scheduler) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.done:
			return
		}
	}
}
