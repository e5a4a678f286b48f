package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeiro/internal/amqp"
	"financeiro/internal/config"
	apphttp "financeiro/internal/http"
	"financeiro/internal/log"
	"financeiro/internal/services"
	"financeiro/internal/sheets"
	gsheet "financeiro/internal/sheets/google"
	"financeiro/internal/store"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

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

	// AMQP is optional: without it the ledger simply skips notifications.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without balance notifications", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	// Google Sheets backup summaries are optional as well.
	var backupSheet sheets.BackupWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Warn("Google Sheets unavailable, backup summaries disabled", log.FieldError, err)
		} else {
			backupSheet = client
			logger.Info("Google Sheets backup summaries enabled", "sheet", cfg.GoogleSheetName)
		}
	}

	ledger := services.NewLedger(st, amqpClient, logger)
	transactions := services.NewTransactions(st, ledger, logger)
	recurrents := services.NewRecurrents(st, logger)
	investments := services.NewInvestments(st, ledger, logger)
	backup := services.NewBackup(st, backupSheet, logger)
	alerts := services.NewAlerts(st, recurrents, cfg.AlertHorizonDays, logger)

	srv := apphttp.NewServer(":"+cfg.Port, st, ledger, transactions, recurrents, investments, backup, alerts)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("starting financeiro server",
		"port", cfg.Port,
		"db_path", cfg.DBPath,
		"amqp", amqpClient != nil,
		"sheets", backupSheet != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}
