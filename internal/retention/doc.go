// Package retention schedules deferred purges of ended sessions.
//
// A Scheduler holds one deadline per key. Deadlines are checked lazily by
// Reap on every access and periodically by a single sweeper goroutine, so
// the number of goroutines stays constant no matter how many sessions are
// waiting to be purged:
//
//	s := retention.New(retention.Options{
//	    Interval: time.Minute,
//	    OnExpire: func(key string) { purge(key) },
//	})
//	defer s.Close()
//
//	s.Schedule(sessionID, 30*time.Minute)
//	s.Cancel(sessionID) // session reopened
//
// Close drops every pending entry without firing OnExpire.
package retention
