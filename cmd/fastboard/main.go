package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"fastboard/internal/amqp"
	"fastboard/internal/balance"
	"fastboard/internal/cli"
	"fastboard/internal/fetch"
	apphttp "fastboard/internal/http"
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

	// Snapshot events are optional; without a broker the dashboard
	// still works, only the file export is skipped.
	var publisher refresh.SnapshotPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	service := refresh.NewService(fetchClient, balanceClient, snapshots, publisher, nil)

	srv := apphttp.NewServer(":"+cfg.Port, snapshots, service)
	service.OnSaved = func(int64) { srv.InvalidateCaches() }

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	scheduler := refresh.NewScheduler(service, cfg.RefreshInterval, nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Error("Scheduler shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start refresh scheduler", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting fastboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"refresh_interval", cfg.RefreshInterval)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
