package prusalink

import (
	"sync"
	"time"
)

// varianceFilter holds a timestamp steady until a new one drifts from it
// by at least tolerance.
type varianceFilter struct {
	tolerance time.Duration

	mu   sync.Mutex
	last time.Time
	set  bool
}

func newVarianceFilter(tolerance time.Duration) *varianceFilter {
	return &varianceFilter{tolerance: tolerance}
}

func (f *varianceFilter) apply(t time.Time) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.set {
		drift := t.Sub(f.last)
		if drift < 0 {
			drift = -drift
		}
		if drift < f.tolerance {
			return f.last
		}
	}
	f.last = t
	f.set = true
	return t
}
