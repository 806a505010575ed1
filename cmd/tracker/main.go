package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/database"
	"portfolio-tracker-go/internal/engine"
	"portfolio-tracker-go/internal/logger"
	"portfolio-tracker-go/internal/quotes"
	"portfolio-tracker-go/internal/store"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	st := store.New(db)

	// Initialize the quote client
	quoteClient := quotes.NewRestClient(&cfg.Provider, log.Named("quotes"))
	if cfg.Provider.ApiKey == "" {
		log.Warn("No provider API key configured; holdings will be valued at cost basis")
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize and run the accounting engine
	acctEngine := engine.NewEngine(log, &cfg, st, quoteClient)
	acctEngine.Run(ctx)

	log.Info("Tracker has been shut down.")
}
