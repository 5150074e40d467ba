package api

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/callshield/internal/config"
	"github.com/snarg/callshield/internal/metrics"
	"github.com/snarg/callshield/internal/scanner"
	"github.com/snarg/callshield/internal/verdict"
)

type ServerOptions struct {
	Config      *config.Config
	Analyzer    Analyzer
	Phrases     *scanner.Library
	WebFiles    fs.FS // nil disables the static page
	OpenAPISpec []byte
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

type Server struct {
	http  *http.Server
	calls *CallHandler
	log   zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	log := opts.Log
	defMode, err := verdict.ParseMode(cfg.DefaultMode, verdict.ModePressure)
	if err != nil {
		defMode = verdict.ModePressure
	}

	if opts.Analyzer == nil {
		opts.Analyzer = verdict.NewAnalyzer(nil, log)
	}
	if opts.Phrases == nil {
		opts.Phrases = scanner.NewLibrary(scanner.Default(), "builtin")
	}

	var escalator Analyzer
	if opts.Analyzer.Configured() {
		escalator = opts.Analyzer
	}
	calls := NewCallHandler(opts.Phrases, escalator, defMode, cfg.CORSOrigins, log.With().Str("component", "session").Logger())

	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORSWithOrigins(cfg.CORSOrigins))
	r.Use(metrics.InstrumentHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	// No auth
	r.Get("/api/v1/health", NewHealthHandler(opts.Analyzer, opts.Phrases, calls, opts.Version, opts.StartTime).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	if len(opts.OpenAPISpec) > 0 {
		r.Get("/api/v1/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			w.Write(opts.OpenAPISpec)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		// Registered for every method; the handler answers 405 itself.
		analyze := NewAnalyzeHandler(opts.Analyzer, defMode)
		r.Handle("/api/v1/analyze", analyze)
		r.Handle("/api/analyzePressure", analyze.Pinned(verdict.ModePressure))
		r.Handle("/api/analyzeClarity", analyze.Pinned(verdict.ModeClarity))

		r.Get("/api/v1/phrases", PhrasesHandler(opts.Phrases))
		r.Get("/api/v1/call", calls.ServeHTTP)
	})

	if opts.WebFiles != nil {
		r.Get("/api/v1/pages", PagesHandler(opts.WebFiles))
		static := http.FileServer(http.FS(opts.WebFiles))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				WriteError(w, http.StatusNotFound, msgNotFound)
				return
			}
			static.ServeHTTP(w, r)
		})
	}

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		calls: calls,
		log:   log,
	}
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Stats exposes live call counts for the metrics collector.
func (s *Server) Stats() metrics.LiveStats { return s.calls }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting requests. Hijacked call sockets are not tracked
// by http.Server, so they are closed here and waited for.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	err := s.http.Shutdown(ctx)
	s.calls.closeAll()
	done := make(chan struct{})
	go func() {
		s.calls.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("call sockets still open at shutdown deadline")
	}
	return err
}
