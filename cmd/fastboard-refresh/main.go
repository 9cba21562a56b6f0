// fastboard-refresh runs one refresh cycle and exits. Useful for cron
// jobs and for seeding the snapshot store before first serving traffic.
package main

import (
	"context"
	"os"

	"fastboard/internal/amqp"
	"fastboard/internal/balance"
	"fastboard/internal/cli"
	"fastboard/internal/fetch"
	"fastboard/internal/refresh"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	snapshots := cli.InitStore(logger, cfg)
	defer snapshots.Close()

	fetchClient := fetch.NewClient(fetch.Options{
		BaseURL:           cfg.APIBaseURL,
		Timeout:           cfg.APITimeout,
		RateDelay:         cfg.APIRateDelay,
		MaxUsersPerEntity: cfg.MaxUsersPerEntity,
	})
	balanceClient := balance.NewClient(balance.Options{
		APIURL:        cfg.EtherscanAPIURL,
		APIKey:        cfg.EtherscanAPIKey,
		Timeout:       cfg.APITimeout,
		BatchSize:     cfg.BalanceBatchSize,
		MaxConcurrent: cfg.MaxBalanceFetch,
	})

	var publisher refresh.SnapshotPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	}

	service := refresh.NewService(fetchClient, balanceClient, snapshots, publisher, nil)

	snap, err := service.Run(context.Background())
	if err != nil {
		logger.Error("Refresh cycle failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Refresh cycle completed",
		"snapshot_id", snap.ID,
		"wallets", snap.Summary.TotalWallets,
		"collections", snap.Summary.CollectionCount,
		"total_value", snap.Summary.TotalValue.StringFixed(2))
}
