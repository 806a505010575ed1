package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"portfolio-tracker-go/internal/export"
	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/store"
	"portfolio-tracker-go/internal/valuation"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log          *zap.Logger
	store        *store.Store
	startingCash float64
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, st *store.Store, startingCash float64) *APIHandler {
	return &APIHandler{log: log, store: st, startingCash: startingCash}
}

// HoldingsHandler returns the current holdings with a cost-basis
// valuation. This view never fetches quotes; the tracker process owns
// the quote budget.
func (h *APIHandler) HoldingsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.Transactions()
	if err != nil {
		h.log.Error("Failed to get transactions from database", zap.Error(err))
		http.Error(w, "Failed to get holdings", http.StatusInternalServerError)
		return
	}

	holdings := ledger.ComputeHoldings(txs)
	cash := ledger.ComputeCash(txs, h.startingCash)
	val := valuation.Valuate(holdings, nil, cash)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(val)
}

// TransactionsHandler returns the full transaction log.
func (h *APIHandler) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.Transactions()
	if err != nil {
		h.log.Error("Failed to get transactions from database", zap.Error(err))
		http.Error(w, "Failed to get transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

// SnapshotsHandler returns the portfolio value time series.
func (h *APIHandler) SnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.store.Snapshots()
	if err != nil {
		h.log.Error("Failed to get snapshots from database", zap.Error(err))
		http.Error(w, "Failed to get snapshots", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snaps)
}

// ExportHandler streams transactions and snapshots in the delimited
// export format.
func (h *APIHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.Transactions()
	if err != nil {
		h.log.Error("Failed to get transactions for export", zap.Error(err))
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}
	snaps, err := h.store.Snapshots()
	if err != nil {
		h.log.Error("Failed to get snapshots for export", zap.Error(err))
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio-export.csv"`)
	if err := export.Write(w, txs, snaps); err != nil {
		h.log.Error("Failed to write export", zap.Error(err))
	}
}
