package scanner

import "sync/atomic"

// Library holds the Scanner new sessions should use. Sessions take a snapshot
// at call start, so a reload never changes the phrases of a call in progress.
type Library struct {
	current atomic.Pointer[Scanner]
	source  atomic.Value // string
	reloads atomic.Int64
}

// NewLibrary returns a Library serving s. source describes where the phrases
// came from ("builtin" or a file path).
func NewLibrary(s *Scanner, source string) *Library {
	l := &Library{}
	l.current.Store(s)
	l.source.Store(source)
	return l
}

// Current returns the active Scanner.
func (l *Library) Current() *Scanner { return l.current.Load() }

// Source returns where the active phrases were loaded from.
func (l *Library) Source() string { return l.source.Load().(string) }

// Reloads returns how many times the Scanner has been replaced.
func (l *Library) Reloads() int64 { return l.reloads.Load() }

// Swap installs s for sessions started from now on.
func (l *Library) Swap(s *Scanner, source string) {
	l.current.Store(s)
	l.source.Store(source)
	l.reloads.Add(1)
}
