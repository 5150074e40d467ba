// Package verdict asks a remote language model to judge a flagged transcript
// chunk and returns its structured verdict.
package verdict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultTemperature keeps the model close to deterministic.
const DefaultTemperature float32 = 0.1

// Request is what a Generator sends upstream.
type Request struct {
	SystemInstruction string
	Transcript        string
	Schema            *genai.Schema
	Temperature       float32
}

// Generator produces the candidate text for a Request. GeminiClient is the
// production implementation.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Observer is notified of every analysis outcome. outcome is "ok" or the
// short name of the failure.
type Observer func(mode Mode, outcome string, elapsed time.Duration)

// Analyzer runs the escalation control flow shared by every mode.
type Analyzer struct {
	gen         Generator
	temperature float32
	observe     Observer
	log         zerolog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float32) Option {
	return func(a *Analyzer) { a.temperature = t }
}

// WithObserver registers a callback for outcome metrics.
func WithObserver(o Observer) Option {
	return func(a *Analyzer) { a.observe = o }
}

// NewAnalyzer creates an Analyzer. gen may be nil when no credential is
// configured; Analyze then fails with ErrNotConfigured after input validation.
func NewAnalyzer(gen Generator, log zerolog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:         gen,
		temperature: DefaultTemperature,
		log:         log,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Configured reports whether a Generator is available.
func (a *Analyzer) Configured() bool { return a.gen != nil }

// Analyze sends transcript to the model under mode's prompt and schema and
// returns the candidate JSON exactly as the model produced it.
func (a *Analyzer) Analyze(ctx context.Context, mode Mode, transcript string) (json.RawMessage, error) {
	start := time.Now()
	raw, err := a.analyze(ctx, mode, transcript)
	if a.observe != nil {
		a.observe(mode, outcomeOf(err), time.Since(start))
	}
	return raw, err
}

func (a *Analyzer) analyze(ctx context.Context, mode Mode, transcript string) (json.RawMessage, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrTranscriptRequired
	}
	if mode != ModePressure && mode != ModeClarity {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if a.gen == nil {
		return nil, ErrNotConfigured
	}

	text, err := a.gen.Generate(ctx, Request{
		SystemInstruction: mode.SystemInstruction(),
		Transcript:        transcript,
		Schema:            mode.ResponseSchema(),
		Temperature:       a.temperature,
	})
	if err != nil {
		a.log.Error().Err(err).Str("mode", string(mode)).Msg("model request failed")
		return nil, err
	}

	raw := json.RawMessage(strings.TrimSpace(text))
	if len(raw) == 0 || raw[0] != '{' {
		a.log.Error().Str("mode", string(mode)).Str("candidate", text).Msg("model returned a non-object verdict")
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedVerdict)
	}
	if err := json.Unmarshal(raw, mode.decodeInto()); err != nil {
		a.log.Error().Err(err).Str("mode", string(mode)).Str("candidate", text).Msg("model returned unparseable verdict")
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	return raw, nil
}

// DecodePressure parses a pressure-mode verdict returned by Analyze.
func DecodePressure(raw json.RawMessage) (PressureVerdict, error) {
	var v PressureVerdict
	err := json.Unmarshal(raw, &v)
	return v, err
}

// DecodeClarity parses a clarity-mode verdict returned by Analyze.
func DecodeClarity(raw json.RawMessage) (ClarityVerdict, error) {
	var v ClarityVerdict
	err := json.Unmarshal(raw, &v)
	return v, err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTranscriptRequired):
		return "missing_transcript"
	case errors.Is(err, ErrUnknownMode):
		return "unknown_mode"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrMalformedVerdict):
		return "malformed"
	default:
		return "upstream_error"
	}
}
