package main

import (
	"context"
	"errors"
	"os"
	"time"

	"journey/internal/amqp"
	"journey/internal/cli"
	"journey/internal/client"
	"journey/internal/log"
	"journey/internal/metrics"
	"journey/internal/sheets"
	gsheet "journey/internal/sheets/google"
	memsheets "journey/internal/sheets/memory"
	"journey/internal/worker"
)

const reconcileInterval = 15 * time.Minute

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting journey-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the statement mirror worker")
		os.Exit(1)
	}

	ctx := context.Background()
	var mirror sheets.StatementMirror
	if cfg.MirrorEnabled() {
		gs, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
		mirror = gs
	} else {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring into memory only")
		mirror = memsheets.New()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	api := client.New(cfg.APIURL, client.WithToken(cfg.APIToken))
	w := worker.NewMirrorWorker(mirror, api, metrics.New())

	runCtx, wait := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", "error", err)
		}
	})

	// Catch up on anything published while the worker was down.
	logger.Info("Performing startup reconcile...")
	if _, err := w.Reconcile(runCtx); err != nil {
		logger.Error("Startup reconcile failed", "error", err)
	}

	go func() {
		if err := amqpClient.Consume(runCtx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := w.Reconcile(runCtx); err != nil {
					logger.Error("Periodic reconcile failed", "error", err)
				}
			}
		}
	}()

	wait()
	logger.Info("Worker shutdown complete")
}
