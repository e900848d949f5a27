package quota

import (
	"fmt"
	"strings"
	"time"
)

// Window identifies a provider quota granularity.
type Window int

const (
	WindowSecond Window = iota
	WindowMinute
	WindowHour
	WindowDay
	WindowMonth

	numWindows
)

// Windows lists every window from shortest to longest.
var Windows = [numWindows]Window{WindowSecond, WindowMinute, WindowHour, WindowDay, WindowMonth}

var windowNames = [numWindows]string{"SECOND", "MINUTE", "HOUR", "DAY", "MONTH"}

// The provider resets its monthly counter on a calendar boundary we cannot see,
// so a month is tracked as a fixed 31 days.
var windowDurations = [numWindows]time.Duration{
	time.Second,
	time.Minute,
	time.Hour,
	24 * time.Hour,
	31 * 24 * time.Hour,
}

// String returns the provider's name for the window (e.g. "MINUTE").
func (w Window) String() string {
	if !w.valid() {
		return fmt.Sprintf("Window(%d)", int(w))
	}
	return windowNames[w]
}

// Duration returns the fixed reset period of the window.
func (w Window) Duration() time.Duration {
	if !w.valid() {
		return 0
	}
	return windowDurations[w]
}

// MarshalText renders the window by name.
func (w Window) MarshalText() ([]byte, error) {
	if !w.valid() {
		return nil, fmt.Errorf("invalid window: %d", int(w))
	}
	return []byte(w.String()), nil
}

// UnmarshalText parses a window name.
func (w *Window) UnmarshalText(text []byte) error {
	parsed, err := ParseWindow(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseWindow parses a window name case-insensitively.
func ParseWindow(value string) (Window, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, w := range Windows {
		if windowNames[w] == normalized {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown quota window: %q", value)
}

func (w Window) valid() bool {
	return w >= 0 && w < numWindows
}

// Limits holds one ceiling per window.
type Limits [numWindows]int

// DefaultLimits are the fallback ceilings used until the provider reports real ones.
// They are guesses for a free-tier key and are overridable through configuration.
var DefaultLimits = Limits{
	WindowSecond: 20,
	WindowMinute: 300,
	WindowHour:   3000,
	WindowDay:    7500,
	WindowMonth:  11000,
}

// WithOverrides returns a copy of l with positive override values applied.
// Keys are window names; unknown keys and non-positive values are ignored.
func (l Limits) WithOverrides(overrides map[string]int) Limits {
	out := l
	for name, value := range overrides {
		w, err := ParseWindow(name)
		if err != nil || value <= 0 {
			continue
		}
		out[w] = value
	}
	return out
}

// Get returns the ceiling for a window.
func (l Limits) Get(w Window) int {
	if !w.valid() {
		return 0
	}
	return l[w]
}
