package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/meshweave/engine"
	"github.com/meshweave/engine/internal/config"
	"github.com/meshweave/engine/internal/engine"
	"github.com/meshweave/engine/internal/server"
	"github.com/meshweave/engine/internal/substrate"
	"github.com/meshweave/engine/pkg/log"
)

type meshweave struct {
	cfg        *config.Config
	substrate  *substrate.Blob
	syncer     substrate.Syncer
	engine     *engine.Engine
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var ErrOpenSubstrate = errors.New("failed to open sync substrate")

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &meshweave{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *meshweave) run() error {
	if err := s.initializeSubstrate(); err != nil {
		return err
	}

	s.initializeEngine()
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *meshweave) setupLogging() {
	level := log.ParseLevel(s.cfg.LogLevel)
	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Meshweave Engine starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("identity", s.cfg.Identity),
		slog.String("bucket_url", s.cfg.BucketURL),
		slog.String("work_dir", s.cfg.WorkDir),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *meshweave) initializeSubstrate() error {
	sub, err := substrate.OpenBlob(context.Background(), s.cfg.BucketURL, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenSubstrate, err)
	}
	s.substrate = sub
	s.syncer = substrate.NewCommandSyncer(s.cfg.SyncCommand)
	return nil
}

func (s *meshweave) initializeEngine() {
	s.engine = engine.New(
		s.cfg, s.substrate, s.syncer,
		engine.NewExecRunner(s.cfg.ModuleCommand),
	)
	s.engine.Start()
}

func (s *meshweave) startServer() {
	s.apiServer = server.NewServer(s.engine)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *meshweave) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()

	if err := s.engine.Stop(); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}

	if err := s.substrate.Close(); err != nil {
		slog.Error("Substrate close failed", log.Error(err))
	}

	slog.Info("Server exited")
}
