package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"git.cscs.ch/openchami/backlog-mcp/api"
	"git.cscs.ch/openchami/backlog-mcp/internal/audit"
	"git.cscs.ch/openchami/backlog-mcp/internal/auth"
	"git.cscs.ch/openchami/backlog-mcp/internal/backlog"
	"git.cscs.ch/openchami/backlog-mcp/internal/config"
	"git.cscs.ch/openchami/backlog-mcp/internal/guard"
	"git.cscs.ch/openchami/backlog-mcp/internal/metrics"
	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
	"git.cscs.ch/openchami/backlog-mcp/internal/server"
	"git.cscs.ch/openchami/backlog-mcp/internal/tools"
)

const guardInitTimeout = 30 * time.Second

func setupLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	// stdout carries the stdio protocol, so logs always go to stderr.
	var base zerolog.Logger
	if cfg.DevMode {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		base = zerolog.New(os.Stderr)
	}
	log.Logger = base.With().Timestamp().Str("service", "backlog-mcp").Str("version", version).Logger()
	return log.Logger
}

func run(parent context.Context, cfg config.Config) error {
	rootLogger := setupLogger(cfg)
	logger := rootLogger.With().Str("component", "main").Logger()
	logger.Info().Str("transport", cfg.Transport).Msg("starting backlog-mcp")

	if cfg.BacklogDomain == "" {
		logger.Error().Msg("BACKLOG_DOMAIN is required")
		return errors.New("BACKLOG_DOMAIN is required")
	}
	key, err := auth.ResolveAPIKey(auth.KeySourceOptions{
		AllowCLIConfigKey: cfg.AllowCLIConfigKey,
		CLIConfigPath:     cfg.CLIConfigPath,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve API key")
		return err
	}
	if key.APIKey == "" {
		logger.Error().Msg("no Backlog API key resolved from BACKLOG_MCP_API_KEY, BACKLOG_API_KEY, or CLI config")
		return errors.New("backlog API key is required")
	}
	logger.Info().Str("key_source", string(key.Source)).Msg("resolved Backlog API key source")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := backlog.New(backlog.Config{
		BaseURL: cfg.BacklogBaseURL(),
		APIKey:  key.APIKey,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create Backlog client")
		return err
	}

	recorder := metrics.New()
	lookup := guard.NewBacklogLookup(client, cfg.KeyResolveTTL)
	directory := guard.NewDirectory(cfg.Guard(), lookup, rootLogger)
	initCtx, cancelInit := context.WithTimeout(ctx, guardInitTimeout)
	err = directory.Initialize(initCtx)
	cancelInit()
	if err != nil {
		logger.Error().Err(err).Msg("project guard initialization failed")
		return fmt.Errorf("initializing project guard: %w", err)
	}
	gate := guard.NewGate(directory, lookup, rootLogger, guard.WithDecisionRecorder(recorder))

	registry, err := server.NewToolRegistry(api.ToolsContract,
		server.WithToolPrefix(cfg.ToolPrefix),
		server.WithToolsets(cfg.EnableToolsets),
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to parse MCP tool contract")
		return err
	}
	modeGuard, err := policy.NewModeGuard(cfg.Mode, cfg.EnableWrite)
	if err != nil {
		logger.Error().Err(err).Msg("invalid mode configuration")
		return err
	}
	logger.Info().Str("mode", modeGuard.Mode()).Bool("write_enabled", cfg.EnableWrite).Msg("execution policy initialized")

	runner := tools.NewRunner(client)
	rt := server.Runtime{
		Registry:   registry,
		Authorizer: modeGuard,
		Caller:     server.NewGuardedCaller(registry, runner, gate),
		Audit:      audit.NewLogger(rootLogger),
		Metrics:    recorder,
		Version:    version,
		Logger:     rootLogger,
	}

	switch cfg.Transport {
	case config.TransportStdio:
		// A blocked stdin read must not delay shutdown on a signal.
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.RunStdio(ctx, os.Stdin, os.Stdout, rt)
		}()
		select {
		case err = <-errCh:
		case <-ctx.Done():
			err = nil
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("stdio runtime stopped with error")
			return err
		}
		logger.Info().Msg("stdio runtime stopped")
		return nil

	case config.TransportHTTP:
		var authn server.SessionAuthenticator
		if cfg.SessionToken != "" {
			authn = server.NewTokenSessionAuthenticator(cfg.SessionToken)
		} else {
			logger.Warn().Msg("BACKLOG_MCP_SESSION_TOKEN is not set; HTTP tool calls will be rejected")
		}
		build := server.BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
		httpServer := server.NewHTTPServer(cfg, build, api.ToolsContract, rt, authn, runner)
		return serveHTTP(ctx, cfg.ListenAddr, httpServer.Router(), logger)

	default:
		return fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // allow SSE streaming without forcing writer timeout.
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case serveErr := <-errCh:
		logger.Error().Err(serveErr).Msg("HTTP server error")
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}
	logger.Info().Msg("server stopped gracefully")
	return nil
}
