// ABOUTME: Tests for the retention scheduler used to purge ended sessions.
// ABOUTME: Validates lazy reaping, sweeping, re-arming, cancellation, bounds, and shutdown.

package retention

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a clock tests can move forward by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects expired keys.
type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) record(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

func (r *recorder) fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func newTestScheduler(t *testing.T, clock *manualClock, rec *recorder, max int) *Scheduler {
	t.Helper()
	s := New(Options{
		Interval:   time.Hour,
		MaxPending: max,
		Now:        clock.Now,
		OnExpire:   rec.record,
	})
	t.Cleanup(s.Close)
	return s
}

func TestScheduler_Reap_BeforeDeadline(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestScheduler(t, clock, rec, 0)

	require.True(t, s.Schedule("session-1", 30*time.Minute))
	clock.Advance(29 * time.Minute)

	assert.False(t, s.Reap("session-1"))
	assert.True(t, s.Pending("session-1"))
	assert.Empty(t, rec.fired())
}

func TestScheduler_Reap_AfterDeadline(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestScheduler(t, clock, rec, 0)

	s.Schedule("session-1", 30*time.Minute)
	clock.Advance(31 * time.Minute)

	assert.True(t, s.Reap("session-1"))
	assert.False(t, s.Pending("session-1"))
	assert.Equal(t, []string{"session-1"}, rec.fired())

	// Second reap is a no-op
	assert.False(t, s.Reap("session-1"))
	assert.Len(t, rec.fired(), 1)
}

func TestScheduler_Schedule_RearmsDeadline(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestScheduler(t, clock, rec, 0)

	s.Schedule("session-1", 10*time.Minute)
	clock.Advance(8 * time.Minute)
	s.Schedule("session-1", 10*time.Minute)
	clock.Advance(8 * time.Minute)

	// 16 minutes since the first arm, 8 since the second
	assert.False(t, s.Reap("session-1"))
	assert.Equal(t, 1, s.Len())

	deadline, ok := s.Deadline("session-1")
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(2*time.Minute), deadline)
}

func TestScheduler_Cancel(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestScheduler(t, clock, rec, 0)

	s.Schedule("session-1", time.Minute)
	assert.True(t, s.Cancel("session-1"))
	assert.False(t, s.Cancel("session-1"), "second cancel finds nothing")

	clock.Advance(time.Hour)
	assert.Equal(t, 0, s.Sweep())
	assert.Empty(t, rec.fired())
}

func TestScheduler_Sweep(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestScheduler(t, clock, rec, 0)

	s.Schedule("short-1", time.Minute)
	s.Schedule("short-2", time.Minute)
	s.Schedule("long", time.Hour)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, s.Sweep())
	assert.ElementsMatch(t, []string{"short-1", "short-2"}, rec.fired())
	assert.True(t, s.Pending("long"))
	assert.Equal(t, 1, s.Len())
}

func TestScheduler_MaxPending_ExpiresOldest(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestScheduler(t, clock, rec, 2)

	s.Schedule("first", time.Hour)
	s.Schedule("second", time.Hour)
	s.Schedule("third", time.Hour)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"first"}, rec.fired(), "oldest entry is expired early")
	assert.False(t, s.Pending("first"))
	assert.True(t, s.Pending("second"))
	assert.True(t, s.Pending("third"))
}

func TestScheduler_MaxPending_RearmKeepsEntry(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestScheduler(t, clock, rec, 2)

	s.Schedule("first", time.Hour)
	s.Schedule("second", time.Hour)
	// Re-arming "first" moves it to the back, so "second" is now oldest
	s.Schedule("first", time.Hour)
	s.Schedule("third", time.Hour)

	assert.Equal(t, []string{"second"}, rec.fired())
	assert.True(t, s.Pending("first"))
}

func TestScheduler_Close_AbandonsPending(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := New(Options{Interval: time.Hour, Now: clock.Now, OnExpire: rec.record})

	s.Schedule("session-1", time.Minute)
	s.Schedule("session-2", time.Minute)
	s.Close()

	assert.Equal(t, 0, s.Len())
	clock.Advance(time.Hour)
	assert.Equal(t, 0, s.Sweep())
	assert.Empty(t, rec.fired())

	// Scheduling after close is refused
	assert.False(t, s.Schedule("session-3", time.Minute))

	// Multiple closes should not panic
	s.Close()
}

func TestScheduler_BackgroundSweep(t *testing.T) {
	rec := &recorder{}
	s := New(Options{Interval: 5 * time.Millisecond, OnExpire: rec.record})
	defer s.Close()

	s.Schedule("quick", time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(rec.fired()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_Concurrent(t *testing.T) {
	clock := newManualClock()
	rec := &recorder{}
	s := newTestScheduler(t, clock, rec, 0)

	const numGoroutines = 50
	const opsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := "key-" + string(rune('A'+id%26)) + "-" + string(rune('0'+j%10))
				s.Schedule(key, time.Minute)
				s.Pending(key)
				if j%3 == 0 {
					s.Cancel(key)
				}
				s.Reap(key)
			}
		}(i)
	}

	wg.Wait()

	clock.Advance(2 * time.Minute)
	s.Sweep()
	assert.Equal(t, 0, s.Len())
}
