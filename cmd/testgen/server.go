package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-testgen-gateway/internal/config"
)

const shutdownTimeout = 10 * time.Second

// cleanup releases one resource during shutdown.
type cleanup struct {
	name string
	fn   func(context.Context) error
}

func newServer(cfg config.Config, port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// run serves until ctx is cancelled or the listener fails, then drains srv
// and runs cleanups in order. Cleanup errors are logged, not returned.
func run(ctx context.Context, srv *http.Server, cleanups []cleanup) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("server failure")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	for _, c := range cleanups {
		if err := c.fn(shutdownCtx); err != nil {
			log.Warn().Err(err).Str("resource", c.name).Msg("cleanup failed")
		}
	}
	log.Info().Msg("shutdown complete")
	return serveErr
}
