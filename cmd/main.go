package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Nzyazin/currency-tracker/internal/core/logger"
	"github.com/Nzyazin/currency-tracker/internal/core/metrics"
	"github.com/Nzyazin/currency-tracker/internal/core/models"
	"github.com/Nzyazin/currency-tracker/internal/core/repository/cbr"
	"github.com/Nzyazin/currency-tracker/internal/core/scheduler"
	"github.com/Nzyazin/currency-tracker/internal/core/usecase"
	"github.com/Nzyazin/currency-tracker/internal/server"
	"github.com/Nzyazin/currency-tracker/pkg/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, cleanup := logger.NewLogger(cfg.Debug)
	defer cleanup()

	if err := run(cfg, log); err != nil {
		log.Error("Tracker stopped with error", logger.ErrorField("error", err))
		cleanup()
		os.Exit(1)
	}
	log.Info("Server exited properly")
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	balance, err := models.NewAmountOf(cfg.Balance.RUB, cfg.Balance.EUR, cfg.Balance.USD)
	if err != nil {
		return fmt.Errorf("starting balance: %w", err)
	}
	store := usecase.NewStateStore(balance, log, m)

	source := cbr.NewLoggingSource(log, cbr.NewRateSource(cfg.RateURL, cfg.FetchTimeout))
	refresher := scheduler.NewRateRefresher(source, store, cfg.RefreshPeriod(), cfg.FetchTimeout, log, m)
	if err := refresher.RefreshOnce(ctx); err != nil {
		log.Warn("Initial rate refresh failed, totals are unavailable until the next cycle",
			logger.ErrorField("error", err))
	}

	monitor := scheduler.NewChangeMonitor(scheduler.DefaultMonitorInterval, log, m)
	for _, tracked := range store.Tracked() {
		monitor.Track(tracked.Name, tracked.Entity)
	}

	srv, err := server.NewServer(cfg, store, registry, log)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error {
		log.Info("Starting server",
			logger.StringField("addr", cfg.Addr),
			logger.BoolField("tls", cfg.TLSEnabled()))

		var err error
		if cfg.TLSEnabled() {
			err = srv.RunTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.Run()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
