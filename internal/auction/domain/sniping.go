package domain

import "time"

// SnipingPolicy extends the deadline when a bid lands inside the trailing window
type SnipingPolicy struct {
	Window    time.Duration
	Extension time.Duration
}

// Extend returns now+Extension when endAt-now <= Window, never moving the deadline backwards
func (p SnipingPolicy) Extend(endAt, now time.Time) (time.Time, bool) {
	if p.Window <= 0 || p.Extension <= 0 {
		return endAt, false
	}
	if endAt.Sub(now) > p.Window {
		return endAt, false
	}
	candidate := now.Add(p.Extension)
	if !candidate.After(endAt) {
		return endAt, false
	}
	return candidate, true
}
