package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"journey/internal/auth"
	"journey/internal/cli"
	"journey/internal/config"
	apphttp "journey/internal/http"
	"journey/internal/log"
	"journey/internal/metrics"
	"journey/internal/rates"
	"journey/internal/services"
	"journey/internal/telemetry"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "journey")
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	backend := cli.InitBackend(ctx, logger, cfg)
	m := metrics.New()

	opts := []services.Option{
		services.WithQuoter(rates.NewClient(cfg.RateAPIURL, cfg.RateTimeout, rates.WithRecorder(m))),
		services.WithRecorder(m),
	}
	if backend.Publisher != nil {
		opts = append(opts, services.WithPublisher(backend.Publisher))
	}
	ledger := services.NewLedgerService(backend.Store, opts...)

	if cfg.SeedCatalog {
		if _, err := ledger.SeedCatalog(ctx); err != nil {
			logger.Error("Failed to seed default objectives", "error", err)
			os.Exit(1)
		}
	}

	authn, err := newAuthenticator(cfg)
	if err != nil {
		logger.Error("Failed to initialize login", "error", err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		Ledger:       ledger,
		Auth:         authn,
		AutoRate:     cfg.AutoRate,
		Metrics:      m,
		Logger:       logger,
		RateLimitRPM: cfg.RateLimitRPM,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	var refresher *services.RateRefresher
	if cfg.AutoRate {
		refresher = services.NewRateRefresher(ledger, services.RateRefresherConfig{
			Interval:       cfg.RateRefreshInterval,
			RefreshOnStart: true,
		})
	}

	runCtx, wait := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if refresher != nil {
			if err := refresher.Stop(ctx); err != nil {
				logger.Warn("Rate refresher stop error", "error", err)
			}
		}
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("Tracer shutdown error", "error", err)
		}
	})

	if refresher != nil {
		if err := refresher.Start(runCtx); err != nil {
			logger.Error("Failed to start rate refresher", "error", err)
			os.Exit(1)
		}
		logger.Info("Automatic exchange rate enabled", "interval", cfg.RateRefreshInterval)
	}

	go func() {
		logger.Info("Starting journey server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"auth", authn != nil,
			"events", backend.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	wait()
	logger.Info("Server stopped gracefully")
}

func newAuthenticator(cfg *config.Config) (*auth.Authenticator, error) {
	if !cfg.AuthEnabled {
		return nil, nil
	}
	return auth.New(cfg.LoginUsername, cfg.LoginPasswordHash, cfg.JWTSecret, cfg.JWTTTL)
}
