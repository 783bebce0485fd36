package main

import (
	"context"
	"errors"
	"time"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/cli"
	"tally/internal/log"
	"tally/internal/sheets"
	gsheet "tally/internal/sheets/google"
	"tally/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(boot, cli.RoleWorker)
	logger := cli.SetupLogger(cfg.LogLevel)
	logger.Info("Starting tally-worker", log.FieldOperation, log.OpStartup)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	res := cli.OpenBackend(startCtx, logger, cfg)

	var exporter sheets.TransactionExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(startCtx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			_ = res.Cleanup()
			return
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		_ = res.Cleanup()
		return
	}

	w := worker.NewChangeWorker(res.Tables, exporter, logger)

	// Consume returns once ctx is cancelled; unacked messages go back to the queue.
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := amqpClient.Consume(ctx, w.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err, log.FieldQueue, cfg.AMQPQueue)
	} else {
		cli.WaitForShutdown(ctx, done)
	}
	if err := backend.Cleanup(amqpClient.Close, res.Cleanup); err != nil {
		logger.Error("Cleanup failed", log.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}
