package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/Nzyazin/currency-tracker/internal/core/handler"
	"github.com/Nzyazin/currency-tracker/internal/core/logger"
	middlWre "github.com/Nzyazin/currency-tracker/internal/core/middleware"
	"github.com/Nzyazin/currency-tracker/internal/core/usecase"
	"github.com/Nzyazin/currency-tracker/pkg/config"
)

type Server struct {
	router         *mux.Router
	log            logger.Logger
	httpServer     *http.Server
	balanceHandler *handler.BalanceHandler
	registry       *prometheus.Registry
}

func NewServer(cfg *config.Config, balance usecase.BalanceUsecase, registry *prometheus.Registry, log logger.Logger) (*Server, error) {
	ipLimiter, err := middlWre.NewIPLimiter(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", cfg.RateLimit, err)
	}

	server := &Server{
		log:            log,
		router:         mux.NewRouter(),
		balanceHandler: handler.NewBalanceHandler(balance, log),
		registry:       registry,
	}

	server.router.Use(middlWre.WithRequestID(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: metricsprom.NewRecorder(metricsprom.Config{Registry: registry}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})
	server.router.Use(middlWre.RateLimit(ipLimiter, server.log))

	server.RegisterRoutes()

	server.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
	}

	return server, nil
}

func (s *Server) RegisterRoutes() {
	s.router.Use(
		middlWre.WithErrorHandler(s.log),
		middlWre.Recovery(s.log),
	)
	s.balanceHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Handler exposes the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves plain HTTP until Shutdown is called.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		err := s.httpServer.Shutdown(ctx)
		if err != nil {
			s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (s *Server) RunTLS(certFile, keyFile string) error {
	s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}
