package types

import "time"

// CoordinateStatus is the terminal state of one coordinate within a polling run.
type CoordinateStatus string

const (
	// StatusInitialized - first successful poll; the snapshot was seeded
	// without notifying anyone.
	StatusInitialized CoordinateStatus = "initialized"
	// StatusEmergency - hazard thresholds matched; emergency alerts were
	// dispatched and routine change detection was suppressed for the cycle.
	StatusEmergency CoordinateStatus = "emergency"
	// StatusChanged - routine change thresholds matched; one notification
	// was dispatched and the snapshot was overwritten.
	StatusChanged CoordinateStatus = "changed"
	// StatusUnchanged - nothing crossed a threshold; the snapshot is untouched.
	StatusUnchanged CoordinateStatus = "unchanged"
	// StatusRemoved - pruning emptied the subscriber set and the coordinate
	// was dropped from the registry.
	StatusRemoved CoordinateStatus = "removed"
	// StatusSkipped - another run holds the coordinate's poll lock.
	StatusSkipped CoordinateStatus = "skipped"
	// StatusFailed - per-coordinate processing error; the run continued.
	StatusFailed CoordinateStatus = "failed"
)

// CoordinateResult records what a polling run did for one coordinate.
type CoordinateResult struct {
	Coordinate Coordinate         `json:"coordinate"`
	Status     CoordinateStatus   `json:"status"`
	Changes    []ChangeDescriptor `json:"changes,omitempty"`
	Alerts     []EmergencyAlert   `json:"alerts,omitempty"`
	Dispatch   *DispatchResult    `json:"dispatch,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// RunSummary is the outcome of a whole polling run. Success is false only
// for structural failures (e.g. the location registry could not be
// enumerated); individual coordinate failures are recorded in Results.
type RunSummary struct {
	RunID     string             `json:"runId"`
	StartedAt time.Time          `json:"startedAt"`
	Duration  time.Duration      `json:"duration"`
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Results   []CoordinateResult `json:"results"`
}

// CountByStatus tallies per-coordinate results.
func (s *RunSummary) CountByStatus() map[CoordinateStatus]int {
	counts := make(map[CoordinateStatus]int, len(s.Results))
	for _, r := range s.Results {
		counts[r.Status]++
	}
	return counts
}
