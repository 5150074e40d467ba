package verdict

import "errors"

var (
	// ErrTranscriptRequired means the caller sent no transcript text.
	ErrTranscriptRequired = errors.New("transcript is required")
	// ErrUnknownMode means the caller asked for a schema that does not exist.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrNotConfigured means no model credential is configured.
	ErrNotConfigured = errors.New("GEMINI_API_KEY not set")
	// ErrUpstream covers transport failures and non-success responses.
	ErrUpstream = errors.New("upstream request failed")
	// ErrInvalidResponse means the upstream returned no candidate content.
	ErrInvalidResponse = errors.New("invalid AI response structure")
	// ErrMalformedVerdict means the candidate text is not the requested JSON.
	ErrMalformedVerdict = errors.New("malformed verdict")
)
