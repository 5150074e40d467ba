// Package recognizer supervises an external continuous speech recognizer.
//
// The recognizer itself is opaque: it is started, stopped, and delivers
// result, end, and error events through the Driver's Handle methods. The
// Driver keeps a logically continuous transcription session alive by
// restarting the recognizer whenever it ends on its own while the call is
// still marked active.
package recognizer

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Recognizer is a continuous, interim-results speech recognizer.
type Recognizer interface {
	Start() error
	Stop() error
}

// Result is one recognition hypothesis.
type Result struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
}

// ResultEvent carries the recognizer's result list. Only entries from
// ResultIndex onward changed since the previous event.
type ResultEvent struct {
	ResultIndex int      `json:"result_index"`
	Results     []Result `json:"results"`
}

// Sink receives what the Driver extracts from recognizer events.
type Sink interface {
	// Final is called with finalized text, trimmed and space-terminated.
	Final(text string)
	// Interim is called with the current not-yet-final hypothesis.
	Interim(text string)
	// Failure is called with a user-facing message that should replace the
	// transcript panel.
	Failure(message string)
}

// Hooks are optional observation points, used for metrics.
type Hooks struct {
	OnRestart func(err error)
	OnError   func(code string)
}

// Driver wraps a Recognizer with restart supervision and event decoding.
type Driver struct {
	rec   Recognizer
	sink  Sink
	hooks Hooks
	log   zerolog.Logger

	mu     sync.Mutex
	active bool
}

// NewDriver creates a Driver. It does not start the recognizer.
func NewDriver(rec Recognizer, sink Sink, hooks Hooks, log zerolog.Logger) *Driver {
	return &Driver{rec: rec, sink: sink, hooks: hooks, log: log}
}

// Start marks the driver active and starts the recognizer. If the recognizer
// fails to start the driver is left inactive.
func (d *Driver) Start() error {
	d.mu.Lock()
	d.active = true
	d.mu.Unlock()

	if err := d.rec.Start(); err != nil {
		d.mu.Lock()
		d.active = false
		d.mu.Unlock()
		return err
	}
	return nil
}

// Stop clears the active flag before stopping the recognizer, so the end
// event that follows is treated as intentional.
func (d *Driver) Stop() error {
	d.mu.Lock()
	d.active = false
	d.mu.Unlock()
	return d.rec.Stop()
}

// Active reports whether the driver should be transcribing.
func (d *Driver) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// HandleResult splits the changed portion of ev into final and interim text.
func (d *Driver) HandleResult(ev ResultEvent) {
	start := ev.ResultIndex
	if start < 0 {
		start = 0
	}

	var final, interim strings.Builder
	for i := start; i < len(ev.Results); i++ {
		r := ev.Results[i]
		if r.IsFinal {
			final.WriteString(strings.TrimSpace(r.Transcript))
			final.WriteByte(' ')
		} else {
			interim.WriteString(r.Transcript)
		}
	}

	if final.Len() > 0 {
		d.sink.Final(final.String())
	}
	if interim.Len() > 0 {
		d.sink.Interim(interim.String())
	}
}

// HandleEnd restarts the recognizer if the service ended the session while
// the call is still active. A restart failure is logged and not surfaced.
func (d *Driver) HandleEnd() {
	if !d.Active() {
		return
	}
	err := d.rec.Start()
	if err != nil {
		d.log.Error().Err(err).Msg("error restarting recognition")
	} else {
		d.log.Debug().Msg("recognizer ended while active, restarted")
	}
	if d.hooks.OnRestart != nil {
		d.hooks.OnRestart(err)
	}
}

// HandleError maps a recognizer error code to a user-facing banner.
// "no-speech" is not a real failure and is dropped. Any other error clears
// the active flag first, so the end event that follows does not restart
// the recognizer; the user has to start a new call.
func (d *Driver) HandleError(code string) {
	if d.hooks.OnError != nil {
		d.hooks.OnError(code)
	}
	msg, ok := ErrorMessage(code)
	if !ok {
		d.log.Warn().Str("error", code).Msg("speech recognition: no-speech")
		return
	}
	d.mu.Lock()
	d.active = false
	d.mu.Unlock()
	d.log.Error().Str("error", code).Msg("speech recognition error")
	d.sink.Failure(msg)
}
