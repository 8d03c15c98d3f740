package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-testgen-gateway/internal/config"
	httpapi "github.com/tbourn/go-testgen-gateway/internal/http"
	"github.com/tbourn/go-testgen-gateway/internal/http/handlers"
	"github.com/tbourn/go-testgen-gateway/internal/observability"
	"github.com/tbourn/go-testgen-gateway/internal/sandbox"
	"github.com/tbourn/go-testgen-gateway/internal/services"
	"github.com/tbourn/go-testgen-gateway/internal/sysutil"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the sandbox worker that executes generated tests",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}
	cfg.OTEL.ServiceName = sysutil.FirstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "testgen-worker")
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	runner := sandbox.NewRunner(cfg.Worker.Runtime, cfg.Worker.Image, cfg.Worker.RunTimeout)
	if err := runner.Available(ctx); err != nil {
		// Keep serving; /health reports the runtime as down.
		log.Warn().Err(err).Str("runtime", cfg.Worker.Runtime).Msg("container runtime unavailable")
	}

	r := gin.New()
	httpapi.RegisterWorkerRoutes(r, cfg, &handlers.WorkerHandlers{
		Sandbox: &sandbox.Service{Executor: runner},
		Health:  &services.HealthService{Probes: map[string]services.Probe{"runtime": runner.Available}},
	})

	log.Info().
		Str("version", version).
		Str("runtime", cfg.Worker.Runtime).
		Str("image", cfg.Worker.Image).
		Dur("timeout", cfg.Worker.RunTimeout).
		Msg("sandbox worker configured")
	return run(ctx, newServer(cfg, cfg.Worker.Port, r), []cleanup{
		{"otel", otelShutdown},
	})
}

