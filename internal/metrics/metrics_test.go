package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeStats struct{}

func (fakeStats) ConnectionCount() int { return 3 }
func (fakeStats) ActiveCallCount() int { return 2 }
func (fakeStats) PhraseReloads() int64 { return 5 }

func TestCollector(t *testing.T) {
	c := NewCollector(fakeStats{})
	want := `
# HELP callshield_active_calls Current number of calls in the active state.
# TYPE callshield_active_calls gauge
callshield_active_calls 2
# HELP callshield_call_connections Current number of open call WebSocket connections.
# TYPE callshield_call_connections gauge
callshield_call_connections 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "callshield_active_calls", "callshield_call_connections"); err != nil {
		t.Error(err)
	}
}

func TestCollectorNilStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(nil))
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 3 {
		t.Errorf("GatherAndCount = %d, %v; want 3 metrics", n, err)
	}
}

func TestObserveEscalation(t *testing.T) {
	before := testutil.ToFloat64(EscalationsTotal.WithLabelValues("pressure", "upstream_error"))
	ObserveEscalation("pressure", "upstream_error", time.Second)
	after := testutil.ToFloat64(EscalationsTotal.WithLabelValues("pressure", "upstream_error"))
	if after-before != 1 {
		t.Errorf("escalations_total delta = %v, want 1", after-before)
	}
}

func TestObserveRestart(t *testing.T) {
	ok := testutil.ToFloat64(RecognizerRestartsTotal.WithLabelValues("ok"))
	failed := testutil.ToFloat64(RecognizerRestartsTotal.WithLabelValues("error"))
	ObserveRestart(nil)
	ObserveRestart(errors.New("x"))
	if testutil.ToFloat64(RecognizerRestartsTotal.WithLabelValues("ok"))-ok != 1 {
		t.Error("ok restart not counted")
	}
	if testutil.ToFloat64(RecognizerRestartsTotal.WithLabelValues("error"))-failed != 1 {
		t.Error("failed restart not counted")
	}
}

func TestInstrumentHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/v1/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/things/{id}", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/things/42", nil))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/things/{id}", "418"))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if after-before != 1 {
		t.Errorf("requests_total delta = %v, want 1 for route pattern label", after-before)
	}
}
