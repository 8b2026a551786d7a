package main

import (
	"context"
	"os"
	"time"

	"journey/internal/cli"
	"journey/internal/client"
	"journey/internal/log"
	"journey/internal/services"
)

// rate-worker asks a running journey server to refresh its stored USD/BRL
// quote on an interval. Use it when the server runs without AUTO_RATE.
func main() {
	cfg, logger := cli.Bootstrap(log.ComponentRates)

	api := client.New(cfg.APIURL, client.WithToken(cfg.APIToken))
	refresher := services.NewRateRefresher(api, services.RateRefresherConfig{
		Interval:       cfg.RateRefreshInterval,
		RefreshOnStart: true,
	})

	runCtx, wait := cli.GracefulShutdown(logger, 10*time.Second, func(ctx context.Context) {
		if err := refresher.Stop(ctx); err != nil {
			logger.Warn("Rate refresher stop error", "error", err)
		}
		stats := refresher.Stats()
		logger.Info("Rate refresher stopped", "refreshes", stats.Refreshes, "failures", stats.Failures)
	})

	if err := refresher.Start(runCtx); err != nil {
		logger.Error("Failed to start rate refresher", "error", err)
		os.Exit(1)
	}
	logger.Info("Starting rate-worker", "api_url", cfg.APIURL, "interval", cfg.RateRefreshInterval)

	wait()
}
