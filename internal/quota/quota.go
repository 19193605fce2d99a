// Package quota tracks per-identity daily free usage in process memory.
//
// Counts live only for the process lifetime and are not shared across
// instances; multiple server processes each enforce the limit independently.
package quota

import (
	"sync"
	"time"
)

// Unlimited is the sentinel remaining count reported for Pro sessions.
const Unlimited = 9999

// dayFormat keys counts by the server's local calendar date.
const dayFormat = "2006-01-02"

type usageKey struct {
	identity string
	day      string
}

// Tracker counts free-tier card generations per (identity, day).
type Tracker struct {
	limit func() int       // daily limit, evaluated at call time
	now   func() time.Time // injectable clock for tests

	mu       sync.Mutex
	counts   map[usageKey]int
	sweepDay string
}

// NewTracker creates a tracker. The limit function is called on every check so
// the daily limit can change at runtime without a restart.
func NewTracker(limit func() int) *Tracker {
	return &Tracker{
		limit:  limit,
		now:    time.Now,
		counts: make(map[usageKey]int),
	}
}

// Remaining returns how many free generations are left today for the identity,
// clamped at zero. Pro sessions always get the Unlimited sentinel.
func (t *Tracker) Remaining(identity string, pro bool) int {
	if pro {
		return Unlimited
	}

	day := t.now().Format(dayFormat)

	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.limit() - t.counts[usageKey{identity: identity, day: day}]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Record counts one generation against today's allowance. No-op for Pro.
func (t *Tracker) Record(identity string, pro bool) {
	if pro {
		return
	}

	day := t.now().Format(dayFormat)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked(day)
	t.counts[usageKey{identity: identity, day: day}]++
}

// sweepLocked drops counts from previous days the first time a new day is
// seen, so the map only grows with today's distinct identities.
func (t *Tracker) sweepLocked(day string) {
	if t.sweepDay == day {
		return
	}
	for k := range t.counts {
		if k.day != day {
			delete(t.counts, k)
		}
	}
	t.sweepDay = day
}
