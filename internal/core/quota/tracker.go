package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrQuotaExhausted reports that a tracked window has no calls left.
var ErrQuotaExhausted = errors.New("quota exhausted")

// ExhaustedError names the window that refused a call.
type ExhaustedError struct {
	Window  Window
	Max     int
	ResetAt time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s quota exhausted (0/%d), resets at %s", e.Window, e.Max, e.ResetAt.UTC().Format(time.RFC3339))
}

// Unwrap lets errors.Is match ErrQuotaExhausted.
func (e *ExhaustedError) Unwrap() error {
	return ErrQuotaExhausted
}

type windowState struct {
	max       int
	remaining int
	resetAt   time.Time
}

// Tracker mirrors the provider's quota locally across all windows.
//
// It is seeded once from a provider snapshot and afterwards counts calls in
// process, so checking quota never costs a request. Usage by other processes
// sharing the key is invisible to it.
type Tracker struct {
	// Clock overrides time.Now for tests.
	Clock func() time.Time

	mu          sync.Mutex
	windows     [numWindows]windowState
	initialized bool
	lastPoll    *time.Time
}

// NewTracker returns a tracker seeded with the given ceilings. Every window starts
// full and its first reset is anchored at construction time.
func NewTracker(limits Limits, clock func() time.Time) *Tracker {
	t := &Tracker{Clock: clock}
	now := t.now()
	for _, w := range Windows {
		ceiling := limits[w]
		if ceiling < 0 {
			ceiling = 0
		}
		t.windows[w] = windowState{
			max:       ceiling,
			remaining: ceiling,
			resetAt:   now.Add(w.Duration()),
		}
	}
	return t
}

// Initialize overwrites every window from a provider snapshot. Windows missing
// from the snapshot keep their current ceilings. A nil or malformed snapshot
// leaves the tracker untouched and returns an error wrapping ErrInvalidSnapshot.
func (t *Tracker) Initialize(snapshot *Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, w := range Windows {
		state := &t.windows[w]
		if ceiling, ok := snapshot.Max(w); ok && ceiling >= 0 {
			state.max = ceiling
		}
		if remaining, ok := snapshot.Remaining(w); ok {
			state.remaining = remaining
		}
		state.remaining = clamp(state.remaining, 0, state.max)
		state.resetAt = now.Add(w.Duration())
	}

	t.initialized = true
	polled := now
	t.lastPoll = &polled
	return nil
}

// CheckAndConsume rolls over any elapsed windows and then either records one
// call against every window or, when any window is empty, refuses with an
// *ExhaustedError without touching the counters.
func (t *Tracker) CheckAndConsume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, w := range Windows {
		t.rollover(w, now)
	}

	for _, w := range Windows {
		state := t.windows[w]
		if state.remaining <= 0 {
			return &ExhaustedError{Window: w, Max: state.max, ResetAt: state.resetAt}
		}
	}

	for _, w := range Windows {
		t.windows[w].remaining--
	}
	return nil
}

// Status returns a copy of the tracked state. It performs no rollover.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := Status{
		Initialized: t.initialized,
		Windows:     make([]WindowStatus, 0, numWindows),
	}
	if t.lastPoll != nil {
		polled := *t.lastPoll
		status.LastPoll = &polled
	}
	for _, w := range Windows {
		state := t.windows[w]
		status.Windows = append(status.Windows, WindowStatus{
			Window:    w,
			Max:       state.max,
			Remaining: state.remaining,
			ResetAt:   state.resetAt,
		})
	}
	return status
}

// rollover refills a window whose reset time has passed and moves its reset
// time forward by whole durations until it lies in the future.
func (t *Tracker) rollover(w Window, now time.Time) {
	state := &t.windows[w]
	if now.Before(state.resetAt) {
		return
	}

	period := w.Duration()
	elapsed := now.Sub(state.resetAt)
	periods := int64(elapsed/period) + 1

	state.remaining = state.max
	state.resetAt = state.resetAt.Add(time.Duration(periods) * period)
}

func (t *Tracker) now() time.Time {
	if t != nil && t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
