package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
	"github.com/snarg/callshield/internal/verdict"
)

// Analyzer judges a transcript chunk. *verdict.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, mode verdict.Mode, transcript string) (json.RawMessage, error)
	Configured() bool
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
	Mode       string `json:"mode,omitempty"`
}

// AnalyzeHandler proxies a flagged transcript chunk to the model and relays
// its verdict. A pinned mode ignores the request's mode field; otherwise an
// absent mode means defMode.
type AnalyzeHandler struct {
	analyzer Analyzer
	pinned   verdict.Mode
	defMode  verdict.Mode
}

func NewAnalyzeHandler(a Analyzer, defMode verdict.Mode) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: a, defMode: defMode}
}

// Pinned returns a copy of h that always uses mode.
func (h *AnalyzeHandler) Pinned(mode verdict.Mode) *AnalyzeHandler {
	c := *h
	c.pinned = mode
	return &c
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	mode := h.pinned
	if mode == "" {
		mode = verdict.Mode(strings.ToLower(strings.TrimSpace(req.Mode)))
		if mode == "" {
			mode = h.defMode
		}
	}

	raw, err := h.analyzer.Analyze(r.Context(), mode, req.Transcript)
	if err != nil {
		status, msg := analyzeError(err)
		log := hlog.FromRequest(r)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("mode", string(mode)).Msg("analyze failed")
		} else {
			log.Debug().Err(err).Msg("analyze rejected")
		}
		WriteError(w, status, msg)
		return
	}
	WriteRawJSON(w, http.StatusOK, raw)
}

func analyzeError(err error) (int, string) {
	switch {
	case errors.Is(err, verdict.ErrTranscriptRequired):
		return http.StatusBadRequest, msgTranscript
	case errors.Is(err, verdict.ErrUnknownMode):
		return http.StatusBadRequest, msgUnknownMode
	case errors.Is(err, verdict.ErrNotConfigured):
		return http.StatusInternalServerError, msgNotConfigured
	case errors.Is(err, verdict.ErrUpstream):
		return http.StatusInternalServerError, msgUpstream
	case errors.Is(err, verdict.ErrInvalidResponse):
		return http.StatusInternalServerError, msgInvalidResponse
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
