package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "callshield"

// HTTP metrics, recorded by InstrumentHandler.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

// Call session counters (incremented directly by the session controller).
var (
	CallsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calls_started_total",
		Help:      "Calls that reached the active state.",
	}, []string{"mode"})

	CallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "call_duration_seconds",
		Help:      "Duration of completed calls.",
		Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600},
	}, []string{"mode"})

	MicrophoneDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "microphone_denied_total",
		Help:      "Call starts that failed to obtain microphone access.",
	})

	PhrasesDetectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "phrases_detected_total",
		Help:      "First-time phrase detections per call, by category.",
	}, []string{"category"})

	VerdictsDiscardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verdicts_discarded_total",
		Help:      "Escalation responses dropped because their call had ended.",
	})

	RecognizerRestartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recognizer_restarts_total",
		Help:      "Automatic recognizer restarts after a service-initiated end.",
	}, []string{"result"})

	RecognizerErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recognizer_errors_total",
		Help:      "Recognizer error events, by error code.",
	}, []string{"code"})
)

// Escalation metrics (recorded through the analyzer observer).
var (
	EscalationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escalations_total",
		Help:      "Model escalations, by mode and outcome.",
	}, []string{"mode", "outcome"})

	EscalationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "escalation_duration_seconds",
		Help:      "Time spent waiting for a verdict.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"mode"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CallsStartedTotal,
		CallDuration,
		MicrophoneDeniedTotal,
		PhrasesDetectedTotal,
		VerdictsDiscardedTotal,
		RecognizerRestartsTotal,
		RecognizerErrorsTotal,
		EscalationsTotal,
		EscalationDuration,
	)
}

// ObserveEscalation records one analyzer outcome. Its signature matches
// verdict.Observer once the mode is converted to a string.
func ObserveEscalation(mode, outcome string, elapsed time.Duration) {
	EscalationsTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == "ok" {
		EscalationDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	}
}

// ObserveRestart records an automatic recognizer restart.
func ObserveRestart(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RecognizerRestartsTotal.WithLabelValues(result).Inc()
}

// InstrumentHandler returns middleware that records HTTP request metrics.
// It uses chi's route pattern as the path label to avoid cardinality explosion.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)

		pattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap supports http.ResponseController and middleware that check for
// wrapped writers (the WebSocket upgrade needs http.Hijacker).
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets the WebSocket upgrader take over instrumented connections.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(w.ResponseWriter).Hijack()
	if err != nil {
		return nil, nil, err
	}
	w.status = http.StatusSwitchingProtocols
	return conn, rw, nil
}
