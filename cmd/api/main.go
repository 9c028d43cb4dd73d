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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/tutoring-booking/internal/api/router"
	"github.com/wolfman30/tutoring-booking/internal/app/bootstrap"
	"github.com/wolfman30/tutoring-booking/internal/appointments"
	appconfig "github.com/wolfman30/tutoring-booking/internal/config"
	"github.com/wolfman30/tutoring-booking/internal/observability/metrics"
	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting tutoring-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"email_provider", cfg.EmailProvider,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.NotifyTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stop()
	if err := app.close(shutdownCtx); err != nil {
		logger.Error("failed to release resources", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type app struct {
	handler http.Handler
	close   func(ctx context.Context) error
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	metricsHandler, bookingMetrics := setupBookingMetrics()

	store, err := bootstrap.BuildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier, provider, err := bootstrap.BuildNotifier(cfg, logger)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	limiter := bootstrap.BuildRateLimiter(ctx, cfg, redisClient, logger)

	svc := appointments.NewService(store.Store, notifier, appointments.ServiceConfig{
		Provider:          provider,
		NotifyTimeout:     cfg.NotifyTimeout,
		CompensateTimeout: cfg.CompensateTimeout,
	}, bookingMetrics, logger)

	handler := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(svc, store.Lister, cfg.MaxBodyBytes, logger),
		RateLimiter:         limiter,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	return &app{
		handler: handler,
		close: func(ctx context.Context) error {
			var errs []error
			if redisClient != nil {
				errs = append(errs, redisClient.Close())
			}
			errs = append(errs, store.Close(ctx))
			return errors.Join(errs...)
		},
	}, nil
}

func setupBookingMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}
