package model

import "time"

// Mode selects how the check command decides whether to run.
type Mode string

const (
	// ModeAuto skips the run when the current dm+d release already has a
	// report on disk.
	ModeAuto Mode = "auto"
	// ModeForce always runs, regardless of existing reports.
	ModeForce Mode = "force"
)

// Run records one executed check: the release it ran against and how the
// extracted codes classified. Informational only; the version gate never
// reads run history.
type Run struct {
	ID          string    `json:"id"`
	Version     string    `json:"version"`
	Mode        Mode      `json:"mode"`
	Active      int       `json:"active"`
	Inactive    int       `json:"inactive"`
	Unknown     int       `json:"unknown"`
	Unreachable int       `json:"unreachable"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasProblems reports whether the run found any non-active codes.
func (r Run) HasProblems() bool {
	return r.Inactive > 0 || r.Unknown > 0 || r.Unreachable > 0
}
