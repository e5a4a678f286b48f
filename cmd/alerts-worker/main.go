package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeiro/internal/amqp"
	"financeiro/internal/config"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/services"
	"financeiro/internal/store"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("starting alerts-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", log.FieldError, err, "path", cfg.DBPath)
		os.Exit(1)
	}

	recurrents := services.NewRecurrents(st, logger)
	alerts := services.NewAlerts(st, recurrents, cfg.AlertHorizonDays, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Balance change notifications arrive over AMQP when configured; the
	// worker just surfaces them in the log stream alongside alerts.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, balance notifications disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			go func() {
				err := amqpClient.ConsumeBalanceChanged(ctx, func(msg *amqp.BalanceChangedMessage) error {
					logger.Info("balance changed",
						log.FieldAccountID, msg.AccountID,
						log.FieldDeltaCents, msg.DeltaCents,
						log.FieldBalance, msg.BalanceCents,
						"note", msg.Note)
					return nil
				})
				if err != nil && ctx.Err() == nil {
					logger.Error("balance consumer stopped", log.FieldError, err)
				}
			}()
		}
	}

	evaluate := func() {
		today := core.TodayISO()
		found, err := alerts.Evaluate(ctx, today)
		if err != nil {
			logger.Error("alert evaluation failed", log.FieldError, err, "date", today)
			return
		}
		logger.Info("alert evaluation complete", "date", today, log.FieldCount, len(found))
		for _, a := range found {
			logger.Info("alert",
				"kind", a.Kind,
				"bucket", a.Bucket,
				"title", a.Title,
				log.FieldAccountID, a.AccountID,
				"target_date", a.TargetDate,
				"days_until", a.DaysUntil,
				log.FieldAmountCents, a.AmountCents)
		}
	}

	logger.Info("alerts worker configured",
		"interval", cfg.AlertInterval,
		"horizon_days", cfg.AlertHorizonDays,
		"db_path", cfg.DBPath)

	ticker := time.NewTicker(cfg.AlertInterval)
	defer ticker.Stop()

	// Evaluate once on startup, then on every tick.
	evaluate()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				evaluate()
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	logger.Info("alerts-worker shutdown complete")
}
