package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dailysales/internal/amqp"
	"dailysales/internal/cli"
	"dailysales/internal/log"
	"dailysales/internal/worker"
)

const workerDialAttempts = 5

func newWorkerCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Mirror recorded sales from AMQP into Google Sheets",
		Long: "Consumes sale.recorded events published by serve and appends each sale " +
			"to the configured spreadsheet. Requires AMQP_URL and Google Sheets settings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), *cfgPath)
		},
	}
}

func runWorker(parent context.Context, cfgPath string) error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig(cfgPath, nil)
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return errors.New("worker requires AMQP_URL")
	}
	if !cfg.SheetsEnabled() {
		return errors.New("worker requires Google Sheets configuration")
	}

	logger := cli.SetupLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := cli.SignalContext(parent, logger)
	defer cancel()

	exporter, err := buildExporter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
	if err := client.Connect(ctx, workerDialAttempts); err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	w := worker.NewSyncWorker(exporter, logger)
	logger.Info("Starting sales sync worker",
		"exchange", cfg.AMQPExchange,
		"routing_key", cfg.AMQPRoutingKey,
		log.FieldOperation, log.OpStartup)

	if err := w.Run(ctx, client, workerDialAttempts); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		return err
	}

	synced, dropped := w.Stats()
	logger.Info("Worker stopped gracefully",
		"synced", synced,
		"dropped", dropped,
		log.FieldOperation, log.OpShutdown)
	return nil
}
