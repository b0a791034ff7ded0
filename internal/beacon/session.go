package beacon

import (
	"math"
	"sync/atomic"
	"time"
)

// Session is the state kept for one page view.
type Session struct {
	start     time.Time
	maxScroll atomic.Int64
}

// NewSession starts a session at start.
func NewSession(start time.Time) *Session {
	return &Session{start: start}
}

func (s *Session) Start() time.Time {
	return s.start
}

// MaxScroll is the deepest scroll percentage observed so far.
func (s *Session) MaxScroll() int {
	return int(s.maxScroll.Load())
}

// ObserveScroll raises the stored maximum to percent if it is larger and
// reports whether it did. The maximum never decreases.
func (s *Session) ObserveScroll(percent int) bool {
	next := int64(percent)
	for {
		current := s.maxScroll.Load()
		if next <= current {
			return false
		}
		if s.maxScroll.CompareAndSwap(current, next) {
			return true
		}
	}
}

// Duration is the time elapsed between the session start and now.
func (s *Session) Duration(now time.Time) time.Duration {
	return now.Sub(s.start)
}

// ScrollPercent converts a scroll offset into a whole percentage of the
// scrollable distance. A page that cannot scroll is at 0.
func ScrollPercent(scrollTop, scrollHeight, viewportHeight float64) int {
	scrollable := scrollHeight - viewportHeight
	if scrollable <= 0 || math.IsNaN(scrollable) || math.IsNaN(scrollTop) {
		return 0
	}
	percent := math.Round(scrollTop / scrollable * 100)
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return int(percent)
}
