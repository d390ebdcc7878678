// Package api serves the latest build matrix report over HTTP.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildmatrixoor/pkg/api/refresher"
	"github.com/ethpandaops/buildmatrixoor/pkg/config"
	"github.com/ethpandaops/buildmatrixoor/pkg/metrics"
	"github.com/ethpandaops/buildmatrixoor/pkg/resultstore"
	"github.com/ethpandaops/buildmatrixoor/pkg/runner"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	runner     runner.Runner
	store      resultstore.Store
	metrics    *metrics.Metrics
	refresher  refresher.Refresher
	users      map[string]string
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a new API server. The runner must not be started yet;
// the server owns its lifecycle.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	r runner.Runner,
	deps runner.Deps,
) (Server, error) {
	interval, err := cfg.RefreshEvery()
	if err != nil {
		return nil, fmt.Errorf("parsing refresh interval: %w", err)
	}

	log = log.WithField("component", "api")

	return &server{
		log:       log,
		cfg:       cfg,
		runner:    r,
		store:     deps.Store,
		metrics:   deps.Metrics,
		refresher: refresher.NewRefresher(log, r, interval),
		users:     basicAuthUsers(cfg.BasicAuth),
	}, nil
}

// Start starts the runner, the HTTP server and then the background
// refresher.
func (s *server) Start(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("starting runner: %w", err)
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		if stopErr := s.runner.Stop(); stopErr != nil {
			s.log.WithError(stopErr).Warn("Failed to stop runner")
		}

		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	// Start the refresher AFTER the API is listening so that the server is
	// reachable while the first pass runs.
	if err := s.refresher.Start(ctx); err != nil {
		return fmt.Errorf("starting refresher: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the HTTP server, the refresher and the runner.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if err := s.refresher.Stop(); err != nil {
		s.log.WithError(err).Warn("Refresher stop error")
	}

	if err := s.runner.Stop(); err != nil {
		return fmt.Errorf("stopping runner: %w", err)
	}

	s.log.Info("API server stopped")

	return nil
}
