// Package model defines the core types shared across the dmdwatch pipeline.
package model

// Status is the classification of a dm+d code after lookup against the
// terminology server.
type Status string

const (
	// StatusActive means the server confirmed the code is current.
	StatusActive Status = "active"
	// StatusInactive means the server confirmed the code has been retired.
	StatusInactive Status = "inactive"
	// StatusUnknown means the server answered but could not classify the
	// code (not found, or the response carried no inactive property).
	StatusUnknown Status = "unknown"
	// StatusUnreachable means the lookup never completed: transport
	// failure, timeout, or an unparseable response after retries.
	StatusUnreachable Status = "unreachable"
)

// IsProblem reports whether the status should flag the run for the calling
// automation. Everything except a confirmed active code is a problem.
func (s Status) IsProblem() bool {
	return s != StatusActive
}

// Code is a numeric dm+d identifier extracted from a measure SQL file.
type Code struct {
	Value  string `json:"value"`
	Folder string `json:"folder"`
	File   string `json:"file"`
}

// ClassifiedCode pairs an extracted code with its lookup status.
type ClassifiedCode struct {
	Code
	Status Status `json:"status"`
}
