package main

import (
	"context"
	"errors"
	"os"

	"allowance/internal/amqp"
	"allowance/internal/cli"
	"allowance/internal/log"
	"allowance/internal/records"
	"allowance/internal/worker"
)

// allowance-worker consumes month-archived messages and logs a summary of
// each archived month read back from the record store.
func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info"))
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)
	logger.Info("Starting allowance-worker", log.FieldOperation, log.OpStartup)
	if !cfg.NotificationsEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	result := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	archiveWorker := worker.NewArchiveWorker(records.NewRepository(result.Store), nil)

	err = amqpClient.ConsumeMonthArchived(ctx, archiveWorker.HandleMonthArchived)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
