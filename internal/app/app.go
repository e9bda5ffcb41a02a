// Package app holds the startup and shutdown sequence shared by the batch
// commands: environment loading, logging, metrics, the optional health
// server and signal handling.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/coral-dhw-etl/internal/adapter/http"
	"github.com/couchcryptid/coral-dhw-etl/internal/config"
	"github.com/couchcryptid/coral-dhw-etl/internal/observability"
)

// Env is what a command needs to build and run its pipeline.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	srv *httpadapter.Server
}

// Job runs one command against its single positional argument.
type Job func(ctx context.Context, env *Env, arg string) error

var newMetrics = observability.NewMetrics

// Main runs job and returns the process exit code: 0 on success, 1 when the
// job or its setup fails, 2 on bad usage.
func Main(args []string, usage string, job Job) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s %s\n", args[0], usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	env := &Env{
		Config:  cfg,
		Logger:  observability.NewLogger(cfg),
		Metrics: newMetrics(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobErr := job(ctx, env, args[1])
	env.shutdown()

	if cfg.MetricsTextfile != "" {
		if err := env.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			env.Logger.Error("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	if jobErr != nil {
		env.Logger.Error("run failed", "error", jobErr)
		return 1
	}
	return 0
}

// Serve starts the health, readiness and metrics endpoints when HTTP_ADDR is
// set. They stay up until the job returns.
func (e *Env) Serve(ready sharedobs.ReadinessChecker) {
	if e.Config.HTTPAddr == "" || e.srv != nil {
		return
	}
	e.srv = httpadapter.NewServer(e.Config.HTTPAddr, ready, e.Metrics.Gatherer(), e.Logger)
	go func() {
		if err := e.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Error("http server error", "error", err)
		}
	}()
}

func (e *Env) shutdown() {
	if e.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.Config.ShutdownTimeout)
	defer cancel()
	if err := e.srv.Shutdown(ctx); err != nil {
		e.Logger.Error("http server shutdown error", "error", err)
	}
}
