package quota

import "time"

// WindowStatus is the tracked state of one window.
type WindowStatus struct {
	Window    Window    `json:"window"`
	Max       int       `json:"max"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_time"`
}

// Used returns the number of calls counted against the window since its last reset.
func (s WindowStatus) Used() int {
	used := s.Max - s.Remaining
	if used < 0 {
		return 0
	}
	return used
}

// Status is a read-only copy of a tracker's state.
type Status struct {
	Initialized bool           `json:"initialized"`
	LastPoll    *time.Time     `json:"last_poll_time"`
	Windows     []WindowStatus `json:"windows"`
}

// Window returns the status of a single window.
func (s Status) Window(w Window) (WindowStatus, bool) {
	for _, ws := range s.Windows {
		if ws.Window == w {
			return ws, true
		}
	}
	return WindowStatus{}, false
}

// Remaining returns the remaining count for a window, or 0 when absent.
func (s Status) Remaining(w Window) int {
	ws, ok := s.Window(w)
	if !ok {
		return 0
	}
	return ws.Remaining
}
