package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/snarg/callshield/internal/scanner"
	"github.com/snarg/callshield/internal/verdict"
)

// Call is the state of one active call. It is constructed on the
// idle→active transition and discarded on stop; nothing in it outlives
// the call.
type Call struct {
	ID        string
	Mode      verdict.Mode
	StartedAt time.Time

	scanner  *scanner.Scanner
	detected *scanner.Detected

	// transcriptNote is the placeholder or banner the transcript panel shows
	// in place of transcript lines; empty once real text has been rendered.
	transcriptNote string
	// alertsPlaceholder is true until the first alert card replaces the note.
	alertsPlaceholder bool
	summary           string
}

func newCall(mode verdict.Mode, s *scanner.Scanner) *Call {
	return &Call{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
		scanner:   s,
		detected:  scanner.NewDetected(),
	}
}

func (c *Call) scan(text string) []scanner.Match {
	if c.Mode == verdict.ModeClarity {
		return c.scanner.ScanClarity(text)
	}
	return c.scanner.Scan(text)
}

// Status is a snapshot of a controller for diagnostics.
type Status struct {
	State     State        `json:"state"`
	CallID    string       `json:"call_id,omitempty"`
	Mode      verdict.Mode `json:"mode,omitempty"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	Detected  int          `json:"detected"`
	Summary   string       `json:"summary,omitempty"`
}
