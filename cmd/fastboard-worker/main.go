// fastboard-worker consumes snapshot messages from AMQP and writes the
// wallet list CSV and summary JSON exports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fastboard/internal/amqp"
	"fastboard/internal/cli"
	"fastboard/internal/export"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting fastboard-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	snapshots := cli.InitStore(logger, cfg)
	defer snapshots.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exporter := export.NewExporter(snapshots, cfg.ExportDir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := amqpClient.ConsumeSnapshots(ctx, func(msg *amqp.SnapshotMessage) error {
			return exporter.HandleSnapshot(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Give the consumer time to finish the current message.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
