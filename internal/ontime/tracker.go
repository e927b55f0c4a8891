// Package ontime derives how long the supply output has been on.
package ontime

import "time"

// Tracker turns the per-cycle output flag into "ms since output turned on".
// It has a single writer: the cycle driver.
type Tracker struct {
	guard bool

	lastOn   time.Time
	hasLast  bool
	duration int64
}

// New returns a tracker. With guardFirstTick set, the tick on which the
// output is first seen on reports 0 instead of the raw computation.
func New(guardFirstTick bool) *Tracker {
	return &Tracker{guard: guardFirstTick}
}

// Tick folds one observation in and returns the on-duration in ms.
//
// The duration is computed from the previous lastOn before lastOn is
// updated. On the first tick after the output turns on lastOn is still
// unset and counts as the Unix epoch, so the value reported for that one
// tick is now in Unix ms (unless guarded).
func (t *Tracker) Tick(now time.Time, outputEnabled bool) int64 {
	if !outputEnabled {
		t.lastOn = time.Time{}
		t.hasLast = false
		t.duration = 0
		return 0
	}

	var last int64
	if t.hasLast {
		last = t.lastOn.UnixMilli()
	}
	t.duration = now.UnixMilli() - last

	if !t.hasLast {
		if t.guard {
			t.duration = 0
		}
		t.lastOn = now
		t.hasLast = true
	}
	return t.duration
}

// Duration returns the value computed by the last Tick.
func (t *Tracker) Duration() int64 { return t.duration }

// LastOn returns when the output was first seen on, if it is on.
func (t *Tracker) LastOn() (time.Time, bool) { return t.lastOn, t.hasLast }
