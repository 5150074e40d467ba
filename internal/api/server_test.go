package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/callshield/internal/config"
	"github.com/snarg/callshield/internal/scanner"
	"github.com/snarg/callshield/internal/verdict"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:    ":0",
		DefaultMode: "pressure",
	}
}

func newTestServer(t *testing.T, cfg *config.Config, gen verdict.Generator) *Server {
	t.Helper()
	return NewServer(ServerOptions{
		Config:      cfg,
		Analyzer:    verdict.NewAnalyzer(gen, zerolog.Nop()),
		Phrases:     scanner.NewLibrary(scanner.Default(), "builtin"),
		WebFiles:    fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("<!DOCTYPE html><title>callshield</title>")}},
		OpenAPISpec: []byte("openapi: 3.0.3\n"),
		Version:     "test",
		StartTime:   time.Now(),
		Log:         zerolog.Nop(),
	})
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerRoutes(t *testing.T) {
	h := newTestServer(t, testConfig(), nil).Handler()

	t.Run("health_degraded_without_credential", func(t *testing.T) {
		rec := serve(h, "GET", "/api/v1/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Status != "degraded" || body.Checks["model"] != "not_configured" {
			t.Errorf("health = %+v", body)
		}
		if body.Checks["phrases"] != "builtin" {
			t.Errorf("phrases check = %q", body.Checks["phrases"])
		}
		if body.Version != "test" {
			t.Errorf("version = %q", body.Version)
		}
	})

	t.Run("analyze_get_is_json_405", func(t *testing.T) {
		for _, path := range []string{"/api/v1/analyze", "/api/analyzePressure", "/api/analyzeClarity"} {
			rec := serve(h, "GET", path, "")
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s: status = %d, want 405", path, rec.Code)
			}
			if got := errorBody(t, rec); got != msgMethodNotAllowed {
				t.Errorf("%s: error = %q", path, got)
			}
		}
	})

	t.Run("analyze_missing_transcript", func(t *testing.T) {
		rec := serve(h, "POST", "/api/analyzePressure", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("analyze_not_configured", func(t *testing.T) {
		rec := serve(h, "POST", "/api/v1/analyze", `{"transcript":"act now"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		if got := errorBody(t, rec); got != msgNotConfigured {
			t.Errorf("error = %q", got)
		}
	})

	t.Run("unknown_api_path_is_json_404", func(t *testing.T) {
		rec := serve(h, "GET", "/api/v1/nope", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if got := errorBody(t, rec); got != msgNotFound {
			t.Errorf("error = %q", got)
		}
	})

	t.Run("phrases", func(t *testing.T) {
		rec := serve(h, "GET", "/api/v1/phrases", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body PhrasesResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if len(body.Pressure) != len(scanner.DefaultPressurePhrases) {
			t.Errorf("pressure phrases = %d, want %d", len(body.Pressure), len(scanner.DefaultPressurePhrases))
		}
	})

	t.Run("openapi", func(t *testing.T) {
		rec := serve(h, "GET", "/api/v1/openapi.yaml", "")
		if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "openapi:") {
			t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("static_index", func(t *testing.T) {
		rec := serve(h, "GET", "/", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<title>callshield</title>") {
			t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("metrics", func(t *testing.T) {
		rec := serve(h, "GET", "/metrics", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "callshield_http_requests_total") {
			t.Errorf("status = %d, metrics missing", rec.Code)
		}
	})
}

func TestServerAuth(t *testing.T) {
	cfg := testConfig()
	cfg.AuthToken = "secret123"
	h := newTestServer(t, cfg, &stubGenerator{text: `{"is_manipulative":false,"explanation":"","suggested_response":""}`}).Handler()

	if rec := serve(h, "GET", "/api/v1/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health should not need auth, got %d", rec.Code)
	}
	if rec := serve(h, "POST", "/api/v1/analyze", `{"transcript":"act now"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("analyze without token = %d, want 401", rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/analyze", strings.NewReader(`{"transcript":"act now"}`))
	req.Header.Set("Authorization", "Bearer secret123")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("analyze with token = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthConfigured(t *testing.T) {
	h := newTestServer(t, testConfig(), &stubGenerator{}).Handler()
	rec := serve(h, "GET", "/api/v1/health", "")
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || body.Checks["model"] != "ok" {
		t.Errorf("health = %+v", body)
	}
}
