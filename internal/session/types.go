package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/snarg/callshield/internal/scanner"
	"github.com/snarg/callshield/internal/verdict"
)

// State is the call lifecycle state.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// EntryKind distinguishes transcript panel lines.
type EntryKind string

const (
	KindSystem  EntryKind = "system"
	KindError   EntryKind = "error"
	KindFinal   EntryKind = "transcript"
	KindInterim EntryKind = "interim"
)

// Entry is one line of the transcript panel. A KindFinal entry replaces any
// interim line; a KindInterim entry updates it in place.
type Entry struct {
	Kind EntryKind `json:"kind"`
	Text string    `json:"text"`
}

// Alert levels.
const (
	LevelFlag      = "yellow" // keyword hit, not yet judged
	LevelConfirmed = "red"    // model judged it an issue
)

// Alert is a clarity card.
type Alert struct {
	Category   scanner.Category `json:"category"`
	Level      string           `json:"level"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Suggestion string           `json:"suggestion,omitempty"`
}

// Renderer draws the two panels. Calls are serialized by the Controller;
// implementations must not call back into it.
type Renderer interface {
	// Transcript adds e to the transcript panel, clearing it first if replace.
	Transcript(e Entry, replace bool)
	// Alert adds a card to the alert panel, clearing it first if replace.
	Alert(a Alert, replace bool)
	// AlertNote replaces the alert panel with a placeholder line.
	AlertNote(text string)
	// Summary replaces the rolling summary.
	Summary(text string)
	// State reports a lifecycle transition.
	State(s State, callID string)
}

// Microphone asks the user for audio access. It blocks until the user
// answers or ctx is done.
type Microphone interface {
	RequestAccess(ctx context.Context) error
}

// Escalator judges a flagged transcript chunk. *verdict.Analyzer implements it.
type Escalator interface {
	Analyze(ctx context.Context, mode verdict.Mode, transcript string) (json.RawMessage, error)
}

var (
	ErrAlreadyActive = errors.New("call already active")
	ErrNotActive     = errors.New("no active call")
	ErrMicrophone    = errors.New("microphone unavailable")
)
