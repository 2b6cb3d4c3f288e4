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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/logging"
	"github.com/linkshift/linkshift/internal/observability"
	"github.com/linkshift/linkshift/internal/server"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var listenOverride string
	var watchInterval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Linkshift redirect server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("config path is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listenOverride != "" {
				cfg.Server.Listen = listenOverride
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), configPath, cfg, watchInterval)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&listenOverride, "listen", "", "Override server.listen")
	cmd.Flags().DurationVar(&watchInterval, "watch", 5*time.Second, "Config change poll interval (0 disables reloads)")

	return cmd
}

func runServer(ctx context.Context, configPath string, cfg *config.Config, watchInterval time.Duration) error {
	logger := logging.NewLogger(os.Stderr, cfg.Logging.Level)

	var metrics *observability.Metrics
	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		metrics = observability.NewMetrics(reg)
	}

	store, err := server.Open(configPath, logger, metrics)
	if err != nil {
		return err
	}
	// Reloads never move the listener.
	listen := cfg.Server.Listen

	srv, err := server.New(store)
	if err != nil {
		return err
	}
	srv.SetLogger(logger)
	srv.SetMetrics(metrics)

	if cfg.Logging.DecisionLog != "" {
		filter, err := logging.NewFilter(cfg.Logging.Filter)
		if err != nil {
			return fmt.Errorf("decision log filter: %w", err)
		}
		decisionLog, closer, err := logging.OpenDecisionLog(cfg.ResolvePath(cfg.Logging.DecisionLog), filter)
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()
		srv.SetDecisionLogger(decisionLog)
	}

	metricsSrv := startMetricsServer(cfg, metrics, reg, logger)
	defer func() {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(context.Background())
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go store.Watch(done, watchInterval)
	go srv.Maintain(done, time.Minute)

	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listen, "tls", cfg.Server.TLS.Enabled)
		if cfg.Server.TLS.Enabled {
			serverErr <- httpSrv.ListenAndServeTLS(cfg.ResolvePath(cfg.Server.TLS.CertFile), cfg.ResolvePath(cfg.Server.TLS.KeyFile))
			return
		}
		serverErr <- httpSrv.ListenAndServe()
	}()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-signalCtx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

func startMetricsServer(cfg *config.Config, metrics *observability.Metrics, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	if metrics == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}
