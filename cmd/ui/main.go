package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/database"
	"portfolio-tracker-go/internal/logger"
	"portfolio-tracker-go/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Setup HTTP server
	mux := http.NewServeMux()

	// Create a handler that has access to the logger and store
	apiHandler := NewAPIHandler(log, store.New(db), cfg.Portfolio.StartingCash)

	// API endpoints
	mux.HandleFunc("/api/holdings", apiHandler.HoldingsHandler)
	mux.HandleFunc("/api/transactions", apiHandler.TransactionsHandler)
	mux.HandleFunc("/api/snapshots", apiHandler.SnapshotsHandler)
	mux.HandleFunc("/api/export", apiHandler.ExportHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
