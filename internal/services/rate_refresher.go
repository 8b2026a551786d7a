package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"journey/internal/core"
)

// SettingsRefresher fetches a fresh quote and stores it. LedgerService and
// the REST client both implement it.
type SettingsRefresher interface {
	RefreshSettings(ctx context.Context) (core.Settings, error)
}

// RateRefresherConfig holds configuration for the rate refresher
type RateRefresherConfig struct {
	// Interval between refreshes (default: 30m)
	Interval time.Duration

	// RefreshOnStart runs one refresh before the first tick (default: true)
	RefreshOnStart bool
}

// DefaultRateRefresherConfig returns sensible defaults
func DefaultRateRefresherConfig() RateRefresherConfig {
	return RateRefresherConfig{
		Interval:       30 * time.Minute,
		RefreshOnStart: true,
	}
}

// RateRefresher keeps the stored exchange rate current in auto-rate mode.
// A failed refresh is logged and waits for the next tick.
type RateRefresher struct {
	target SettingsRefresher
	config RateRefresherConfig

	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	lastRate    core.Settings
	lastErr     error
	refreshes   int
	failedCount int
}

func NewRateRefresher(target SettingsRefresher, config RateRefresherConfig) *RateRefresher {
	if config.Interval <= 0 {
		config.Interval = DefaultRateRefresherConfig().Interval
	}
	return &RateRefresher{
		target: target,
		config: config,
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (r *RateRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("rate refresher is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	slog.InfoContext(ctx, "Rate refresher started", "interval", r.config.Interval)
	return nil
}

// Stop gracefully stops the refresher and waits for the loop to exit.
func (r *RateRefresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Rate refresher stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Rate refresher stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

func (r *RateRefresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RateRefresher) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	if r.config.RefreshOnStart {
		r.RefreshOnce(ctx)
	}

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce runs a single refresh and records its outcome.
func (r *RateRefresher) RefreshOnce(ctx context.Context) {
	settings, err := r.target.RefreshSettings(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
	r.lastErr = err
	if err != nil {
		r.failedCount++
		slog.WarnContext(ctx, "Rate refresh failed", "error", err, "failures", r.failedCount)
		return
	}
	r.lastRate = settings
	slog.InfoContext(ctx, "Exchange rate refreshed",
		"exchange_rate", settings.ExchangeRate.String(),
		"last_updated", settings.LastUpdated)
}

// RefresherStats is a point-in-time view of the refresher.
type RefresherStats struct {
	Refreshes int
	Failures  int
	LastRate  core.Settings
	LastError error
}

func (r *RateRefresher) Stats() RefresherStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RefresherStats{
		Refreshes: r.refreshes,
		Failures:  r.failedCount,
		LastRate:  r.lastRate,
		LastError: r.lastErr,
	}
}
