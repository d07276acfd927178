package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"pathfinder/config"
)

func NewMux(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	// exact paths only; unknown routes under the prefix stay 404
	mux.HandleFunc(PathsRoute+"{$}", h.FindPaths)
	mux.HandleFunc(strings.TrimSuffix(PathsRoute, "/"), h.FindPaths)
	mux.HandleFunc(TopologyRoute, h.Topology)
	mux.HandleFunc(EventsRoute, h.Events)
	mux.HandleFunc(LinksRoute, h.LinkSamples)
	mux.Handle(MetricsRoute, promhttp.Handler())
	return mux
}

func NewServer(cfg config.APIConfig, h *Handlers) *http.Server {
	return &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      NewMux(h),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  2 * cfg.ReadTimeout,
	}
}

// Run serves until ctx is done, then shuts the server down within
// shutdownTimeout.
func Run(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("Starting pathfinder API server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case <-ctx.Done():
		log.Info("Context canceled. Shutting down pathfinder API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		log.Info("Pathfinder API server stopped gracefully.")
		return nil

	case err, ok := <-serverErrors:
		if !ok {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	}
}
