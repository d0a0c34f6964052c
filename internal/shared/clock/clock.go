package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is the time source used for every deadline comparison in the engine
type Clock interface {
	Now() time.Time
}

// System is the wall clock shifted by an offset that can be synchronized
// against an external reference (e.g. the database server clock).
// Now never goes backwards: a negative correction holds the clock still until wall time catches up.
type System struct {
	offset atomic.Int64
	last   atomic.Int64 // unix nanos of the latest value returned by Now
}

// NewSystem creates a System clock with zero offset
func NewSystem() *System {
	return &System{}
}

func (s *System) Now() time.Time {
	now := time.Now().Add(time.Duration(s.offset.Load())).UnixNano()
	for {
		last := s.last.Load()
		if now <= last {
			return time.Unix(0, last).UTC()
		}
		if s.last.CompareAndSwap(last, now) {
			return time.Unix(0, now).UTC()
		}
	}
}

// Sync adjusts the offset so that Now() matches reference at the moment of the call
func (s *System) Sync(reference time.Time) time.Duration {
	d := reference.Sub(time.Now())
	s.offset.Store(int64(d))
	return d
}

// Offset returns the current drift correction applied to the wall clock
func (s *System) Offset() time.Duration {
	return time.Duration(s.offset.Load())
}

// Fake is a manually driven clock, safe for concurrent use
type Fake struct {
	mu  sync.RWMutex
	now time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}

func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}
