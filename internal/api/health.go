package api

import (
	"net/http"
	"time"

	"github.com/snarg/callshield/internal/scanner"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Connections   int               `json:"connections"`
	ActiveCalls   int               `json:"active_calls"`
}

// CallStats reports live call socket counts.
type CallStats interface {
	ConnectionCount() int
	ActiveCallCount() int
}

// HealthHandler reports liveness. A missing model credential degrades the
// service (keyword alerts still work) but does not make it unhealthy.
type HealthHandler struct {
	analyzer  Analyzer
	phrases   *scanner.Library
	calls     CallStats
	version   string
	startTime time.Time
}

func NewHealthHandler(a Analyzer, phrases *scanner.Library, calls CallStats, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		analyzer:  a,
		phrases:   phrases,
		calls:     calls,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	if h.analyzer != nil && h.analyzer.Configured() {
		checks["model"] = "ok"
	} else {
		checks["model"] = "not_configured"
		status = "degraded"
	}
	if h.phrases != nil {
		checks["phrases"] = h.phrases.Source()
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}
	if h.calls != nil {
		resp.Connections = h.calls.ConnectionCount()
		resp.ActiveCalls = h.calls.ActiveCallCount()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// PhrasesResponse lists the keyword lists new calls will use.
type PhrasesResponse struct {
	Source   string   `json:"source"`
	Reloads  int64    `json:"reloads"`
	Pressure []string `json:"pressure"`
	Jargon   []string `json:"jargon"`
}

// PhrasesHandler serves the current keyword lists.
func PhrasesHandler(lib *scanner.Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := lib.Current().Phrases()
		WriteJSON(w, http.StatusOK, PhrasesResponse{
			Source:   lib.Source(),
			Reloads:  lib.Reloads(),
			Pressure: list.Pressure,
			Jargon:   list.Jargon,
		})
	}
}
