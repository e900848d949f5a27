package quota

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSnapshot reports a rate-limit response that cannot seed the tracker.
var ErrInvalidSnapshot = errors.New("invalid rate limit snapshot")

// Snapshot is the provider's rate-limit report as returned by /admin/v2/rate/limit.
type Snapshot struct {
	Data *SnapshotData `json:"Data"`
}

// SnapshotData wraps the per-key counters.
type SnapshotData struct {
	APIKey *KeyCounters `json:"API_KEY"`
}

// KeyCounters maps window names to counts for one API key.
type KeyCounters struct {
	CallsMade map[string]int `json:"CALLS_MADE,omitempty"`
	Max       map[string]int `json:"MAX"`
	Remaining map[string]int `json:"REMAINING"`
}

// ParseSnapshot decodes and validates a rate-limit response body.
func ParseSnapshot(body []byte) (*Snapshot, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidSnapshot)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Validate checks that the snapshot carries per-window counters.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: missing snapshot", ErrInvalidSnapshot)
	}
	if s.Data == nil {
		return fmt.Errorf("%w: missing Data", ErrInvalidSnapshot)
	}
	if s.Data.APIKey == nil {
		return fmt.Errorf("%w: missing Data.API_KEY", ErrInvalidSnapshot)
	}
	if len(s.Data.APIKey.Max) == 0 && len(s.Data.APIKey.Remaining) == 0 {
		return fmt.Errorf("%w: no MAX or REMAINING counters", ErrInvalidSnapshot)
	}
	return nil
}

// Max returns the reported ceiling for a window.
func (s *Snapshot) Max(w Window) (int, bool) {
	return s.lookup(w, func(k *KeyCounters) map[string]int { return k.Max })
}

// Remaining returns the reported remaining count for a window.
func (s *Snapshot) Remaining(w Window) (int, bool) {
	return s.lookup(w, func(k *KeyCounters) map[string]int { return k.Remaining })
}

func (s *Snapshot) lookup(w Window, pick func(*KeyCounters) map[string]int) (int, bool) {
	if s == nil || s.Data == nil || s.Data.APIKey == nil {
		return 0, false
	}
	counts := pick(s.Data.APIKey)
	if counts == nil {
		return 0, false
	}
	value, ok := counts[w.String()]
	return value, ok
}
