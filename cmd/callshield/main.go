package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	callshield "github.com/snarg/callshield"
	"github.com/snarg/callshield/internal/api"
	"github.com/snarg/callshield/internal/config"
	"github.com/snarg/callshield/internal/metrics"
	"github.com/snarg/callshield/internal/scanner"
	"github.com/snarg/callshield/internal/verdict"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var ov config.Overrides
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&ov.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&ov.HTTPAddr, "listen", "", "HTTP listen address (HTTP_ADDR)")
	flag.StringVar(&ov.LogLevel, "log-level", "", "log level (LOG_LEVEL)")
	flag.StringVar(&ov.PhrasesFile, "phrases", "", "YAML keyword list, watched for changes (PHRASES_FILE)")
	flag.StringVar(&ov.WebDir, "web-dir", "", "serve web assets from disk instead of the binary (WEB_DIR)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(ov)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("callshield starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Model
	analyzerLog := log.With().Str("component", "analyzer").Logger()
	var gen verdict.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := verdict.NewGeminiClient(ctx, verdict.GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.UpstreamTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create gemini client")
		}
		gen = client
		analyzerLog.Info().Str("model", client.Model()).Msg("model configured")
	} else {
		analyzerLog.Warn().Msg("GEMINI_API_KEY not set, escalation disabled")
	}
	analyzer := verdict.NewAnalyzer(gen, analyzerLog,
		verdict.WithTemperature(cfg.GeminiTemperature),
		verdict.WithObserver(func(mode verdict.Mode, outcome string, elapsed time.Duration) {
			metrics.ObserveEscalation(string(mode), outcome, elapsed)
		}),
	)

	// Phrases
	phrasesLog := log.With().Str("component", "phrases").Logger()
	phrases := scanner.NewLibrary(scanner.Default(), "builtin")
	var watcher *scanner.Watcher
	if cfg.PhrasesFile != "" {
		watcher = scanner.NewWatcher(cfg.PhrasesFile, phrases, phrasesLog)
		if err := watcher.Reload(); err != nil {
			log.Fatal().Err(err).Str("path", cfg.PhrasesFile).Msg("failed to load phrases")
		}
	}

	// Web assets
	var webFS fs.FS
	if cfg.WebDir != "" {
		webFS = os.DirFS(cfg.WebDir)
		log.Info().Str("dir", cfg.WebDir).Msg("serving web assets from disk")
	} else if sub, err := fs.Sub(callshield.WebFiles, "web"); err == nil {
		webFS = sub
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:      cfg,
		Analyzer:    analyzer,
		Phrases:     phrases,
		WebFiles:    webFS,
		OpenAPISpec: callshield.OpenAPISpec,
		Version:     version,
		StartTime:   startTime,
		Log:         httpLog,
	})
	prometheus.MustRegister(metrics.NewCollector(srv.Stats()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("phrase watcher: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			log.Info().Msg("shutdown signal received")
		}

		// Graceful shutdown with 10s timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("callshield exited with error")
		os.Exit(1)
	}
	log.Info().Msg("callshield stopped")
}
