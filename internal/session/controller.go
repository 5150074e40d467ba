// Package session runs one call: it owns the idle/active state machine,
// feeds finalized transcript text through the keyword scanner, escalates new
// matches, and renders the results.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/callshield/internal/metrics"
	"github.com/snarg/callshield/internal/recognizer"
	"github.com/snarg/callshield/internal/scanner"
	"github.com/snarg/callshield/internal/verdict"
)

// Panel texts.
const (
	msgConnecting   = "Connecting..."
	msgConnected    = "Connected. Start speaking..."
	msgCallEnded    = "Call ended."
	msgAlertsIntro  = "Alerts will appear here."
	msgRecognizerUp = "Error: Could not start speech recognition. Please try again."
)

// Options configures a Controller.
type Options struct {
	Phrases    *scanner.Library
	Escalator  Escalator // nil disables escalation; keyword alerts still render
	Microphone Microphone
	Recognizer recognizer.Recognizer
	Renderer   Renderer
	Log        zerolog.Logger
}

// Controller drives one connection's calls. It is safe for concurrent use:
// recognizer events, control messages and escalation results may arrive on
// different goroutines.
type Controller struct {
	phrases   *scanner.Library
	escalator Escalator
	mic       Microphone
	render    Renderer
	driver    *recognizer.Driver
	log       zerolog.Logger

	mu   sync.Mutex
	call *Call

	inflight sync.WaitGroup
}

// NewController creates an idle Controller.
func NewController(opts Options) *Controller {
	c := &Controller{
		phrases:   opts.Phrases,
		escalator: opts.Escalator,
		mic:       opts.Microphone,
		render:    opts.Renderer,
		log:       opts.Log,
	}
	c.driver = recognizer.NewDriver(opts.Recognizer, c, recognizer.Hooks{
		OnRestart: metrics.ObserveRestart,
		OnError: func(code string) {
			metrics.RecognizerErrorsTotal.WithLabelValues(code).Inc()
		},
	}, opts.Log)
	return c
}

// Driver returns the recognizer driver so the transport can feed it events.
func (c *Controller) Driver() *recognizer.Driver { return c.driver }

// Active reports whether a call is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.call != nil
}

// Status returns a snapshot of the current call.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.call == nil {
		return Status{State: StateIdle}
	}
	started := c.call.StartedAt
	return Status{
		State:     StateActive,
		CallID:    c.call.ID,
		Mode:      c.call.Mode,
		StartedAt: &started,
		Detected:  c.call.detected.Len(),
		Summary:   c.call.summary,
	}
}

// Start moves idle→active: it creates a fresh Call (so previously detected
// phrases trigger again), asks for the microphone, and starts the recognizer.
// Any failure reverts to idle.
func (c *Controller) Start(ctx context.Context, mode verdict.Mode) error {
	c.mu.Lock()
	if c.call != nil {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	call := newCall(mode, c.phrases.Current())
	c.call = call
	call.transcriptNote = msgConnecting
	call.alertsPlaceholder = true
	c.render.State(StateActive, call.ID)
	c.render.Transcript(Entry{Kind: KindSystem, Text: msgConnecting}, true)
	c.render.AlertNote(msgAlertsIntro)
	c.mu.Unlock()

	log := c.log.With().Str("call_id", call.ID).Str("mode", string(mode)).Logger()

	// The lock is released while the user answers the permission prompt; a
	// Stop in the meantime ends the call and this Start loses.
	if err := c.mic.RequestAccess(ctx); err != nil {
		metrics.MicrophoneDeniedTotal.Inc()
		log.Warn().Err(err).Msg("microphone access failed")
		c.mu.Lock()
		if c.call == call {
			c.call = nil
			c.render.Transcript(Entry{Kind: KindError, Text: recognizer.MsgMicrophone}, true)
			c.render.State(StateIdle, call.ID)
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrMicrophone, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.call != call {
		return ErrNotActive
	}
	call.transcriptNote = msgConnected
	c.render.Transcript(Entry{Kind: KindSystem, Text: msgConnected}, true)

	if err := c.driver.Start(); err != nil {
		log.Error().Err(err).Msg("recognizer failed to start")
		c.call = nil
		c.render.Transcript(Entry{Kind: KindError, Text: msgRecognizerUp}, true)
		c.render.State(StateIdle, call.ID)
		return fmt.Errorf("start recognizer: %w", err)
	}

	metrics.CallsStartedTotal.WithLabelValues(string(mode)).Inc()
	log.Info().Msg("call started")
	return nil
}

// Stop moves active→idle. It stops the recognizer and appends the terminal
// log line. Escalations still in flight are not cancelled; their results are
// dropped when they arrive.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := c.call
	if call == nil {
		return ErrNotActive
	}
	c.call = nil

	if err := c.driver.Stop(); err != nil {
		c.log.Warn().Err(err).Str("call_id", call.ID).Msg("recognizer stop failed")
	}

	// A panel still showing a progress placeholder is replaced; otherwise
	// the transcript stays and the terminal line is appended.
	replace := strings.Contains(call.transcriptNote, "...")
	c.render.Transcript(Entry{Kind: KindSystem, Text: msgCallEnded}, replace)
	c.render.State(StateIdle, call.ID)

	elapsed := time.Since(call.StartedAt)
	metrics.CallDuration.WithLabelValues(string(call.Mode)).Observe(elapsed.Seconds())
	c.log.Info().
		Str("call_id", call.ID).
		Int("detected", call.detected.Len()).
		Dur("duration", elapsed).
		Msg("call ended")
	return nil
}

// Close stops any active call and waits for in-flight escalations.
func (c *Controller) Close() {
	if err := c.Stop(); err != nil && !errors.Is(err, ErrNotActive) {
		c.log.Warn().Err(err).Msg("stop on close failed")
	}
	c.inflight.Wait()
}

// Wait blocks until every escalation started so far has finished.
func (c *Controller) Wait() { c.inflight.Wait() }

// Unsupported reports that the client has no speech recognizer. The call,
// if any, cannot proceed.
func (c *Controller) Unsupported() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render.Transcript(Entry{Kind: KindError, Text: recognizer.MsgUnsupported}, true)
	c.endLocked("recognizer unsupported")
}

// Final implements recognizer.Sink.
func (c *Controller) Final(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := c.call
	if call == nil {
		return
	}

	replace := call.transcriptNote != ""
	call.transcriptNote = ""
	c.render.Transcript(Entry{Kind: KindFinal, Text: text}, replace)

	escalate := false
	for _, m := range call.scan(text) {
		if !call.detected.Add(m.Key()) {
			continue
		}
		metrics.PhrasesDetectedTotal.WithLabelValues(string(m.Category)).Inc()
		c.log.Info().
			Str("call_id", call.ID).
			Str("category", string(m.Category)).
			Str("phrase", m.Phrase).
			Msg("phrase detected")
		c.alert(call, flagAlert(m, c.escalator != nil))
		escalate = true
	}

	// One escalation per fragment, however many new keys it produced.
	if escalate && c.escalator != nil {
		c.escalate(call, text)
	}
}

// Interim implements recognizer.Sink.
func (c *Controller) Interim(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := c.call
	if call == nil {
		return
	}
	replace := call.transcriptNote != ""
	call.transcriptNote = ""
	c.render.Transcript(Entry{Kind: KindInterim, Text: text}, replace)
}

// Failure implements recognizer.Sink. The banner replaces the transcript
// panel and the call ends; the user starts a new one.
func (c *Controller) Failure(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render.Transcript(Entry{Kind: KindError, Text: message}, true)
	c.endLocked("recognizer error")
}

// endLocked ends the current call, if any, without the terminal log line.
// Caller holds c.mu.
func (c *Controller) endLocked(reason string) {
	call := c.call
	if call == nil {
		return
	}
	c.call = nil
	if err := c.driver.Stop(); err != nil {
		c.log.Warn().Err(err).Str("call_id", call.ID).Msg("recognizer stop failed")
	}
	c.render.State(StateIdle, call.ID)

	elapsed := time.Since(call.StartedAt)
	metrics.CallDuration.WithLabelValues(string(call.Mode)).Observe(elapsed.Seconds())
	c.log.Info().
		Str("call_id", call.ID).
		Str("reason", reason).
		Dur("duration", elapsed).
		Msg("call ended")
}

// alert renders a card; the first card of a call clears the placeholder.
// Caller holds c.mu.
func (c *Controller) alert(call *Call, a Alert) {
	replace := call.alertsPlaceholder
	call.alertsPlaceholder = false
	c.render.Alert(a, replace)
}

// escalate asks the model about text in the background. Responses are
// rendered in arrival order. Caller holds c.mu.
func (c *Controller) escalate(call *Call, text string) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		// Not tied to the call: stopping does not cancel the request.
		raw, err := c.escalator.Analyze(context.Background(), call.Mode, text)

		c.mu.Lock()
		defer c.mu.Unlock()
		log := c.log.With().Str("call_id", call.ID).Logger()
		if c.call != call {
			metrics.VerdictsDiscardedTotal.Inc()
			log.Debug().Msg("discarding verdict for ended call")
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("escalation failed")
			return
		}
		c.applyVerdict(call, raw)
	}()
}

// applyVerdict renders a verdict. Caller holds c.mu.
func (c *Controller) applyVerdict(call *Call, raw []byte) {
	switch call.Mode {
	case verdict.ModeClarity:
		v, err := verdict.DecodeClarity(raw)
		if err != nil {
			c.log.Warn().Err(err).Str("call_id", call.ID).Msg("undecodable clarity verdict")
			return
		}
		for _, a := range v.Alerts {
			c.alert(call, Alert{
				Category:   clarityCategory(a.Type),
				Level:      LevelConfirmed,
				Title:      a.Title,
				Message:    a.Message,
				Suggestion: a.Suggestion,
			})
		}
		if v.Summary != "" {
			call.summary = v.Summary
			c.render.Summary(v.Summary)
		}
	default:
		v, err := verdict.DecodePressure(raw)
		if err != nil {
			c.log.Warn().Err(err).Str("call_id", call.ID).Msg("undecodable pressure verdict")
			return
		}
		if !v.IsManipulative {
			c.log.Debug().Str("call_id", call.ID).Msg("model judged flagged text harmless")
			return
		}
		c.alert(call, Alert{
			Category:   scanner.CategoryPressure,
			Level:      LevelConfirmed,
			Title:      "Manipulation Likely",
			Message:    v.Explanation,
			Suggestion: v.SuggestedResponse,
		})
	}
}

func clarityCategory(t string) scanner.Category {
	switch c := scanner.Category(t); c {
	case scanner.CategoryJargon, scanner.CategoryMultiQuestion:
		return c
	default:
		return scanner.CategoryPressure
	}
}

// flagAlert is the card shown as soon as the scanner fires.
func flagAlert(m scanner.Match, escalating bool) Alert {
	pending := ""
	if escalating {
		pending = " Analyzing context..."
	}
	switch m.Category {
	case scanner.CategoryJargon:
		return Alert{
			Category:   m.Category,
			Level:      LevelFlag,
			Title:      "Jargon Detected",
			Message:    fmt.Sprintf("The term %q was used.%s", m.Phrase, pending),
			Suggestion: "Ask them to explain what that means in plain words.",
		}
	case scanner.CategoryMultiQuestion:
		return Alert{
			Category:   m.Category,
			Level:      LevelFlag,
			Title:      "Multiple Questions",
			Message:    "Several questions were asked at once." + pending,
			Suggestion: "Answer one question at a time.",
		}
	default:
		return Alert{
			Category: m.Category,
			Level:    LevelFlag,
			Title:    "Pressure Tactic Detected",
			Message:  fmt.Sprintf("The phrase %q was detected.%s", m.Phrase, pending),
		}
	}
}
