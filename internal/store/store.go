// Package store is the storage handle for the transaction log and the
// snapshot time series. It is created once and passed explicitly to
// every component that persists or reads data; there is no package-level
// database state.
package store

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portfolio-tracker-go/internal/models"
)

// Field-level validation errors returned by AddTransaction. These are
// ingestion-boundary rejections: nothing that fails here ever reaches
// the accounting core.
var (
	ErrEmptySymbol  = errors.New("transaction symbol must not be empty")
	ErrInvalidSide  = errors.New("transaction side must be BUY or SELL")
	ErrInvalidQty   = errors.New("transaction qty must be a positive finite number")
	ErrInvalidPrice = errors.New("transaction price must be a non-negative finite number")
)

// Store wraps the database handle with the operations the engine needs.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an opened database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ValidateTransaction checks a transaction against the ingestion rules
// and returns it with the symbol normalized to uppercase.
func ValidateTransaction(tx models.Transaction) (models.Transaction, error) {
	tx.Symbol = strings.ToUpper(strings.TrimSpace(tx.Symbol))
	if tx.Symbol == "" {
		return tx, ErrEmptySymbol
	}
	if tx.Side != models.SideBuy && tx.Side != models.SideSell {
		return tx, ErrInvalidSide
	}
	if !(tx.Qty > 0) || math.IsInf(tx.Qty, 0) {
		return tx, ErrInvalidQty
	}
	if tx.Price < 0 || math.IsNaN(tx.Price) || math.IsInf(tx.Price, 0) {
		return tx, ErrInvalidPrice
	}
	return tx, nil
}

// AddTransaction validates and appends a transaction to the log. The
// database assigns the ID. The stored (normalized) transaction is
// returned.
func (s *Store) AddTransaction(tx models.Transaction) (models.Transaction, error) {
	tx, err := ValidateTransaction(tx)
	if err != nil {
		return tx, err
	}
	if err := s.db.Create(&tx).Error; err != nil {
		return tx, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return tx, nil
}

// Transactions returns the full transaction log ordered by date, then by
// insertion order for equal dates.
func (s *Store) Transactions() ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := s.db.Order("date, id").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txs, nil
}

// TransactionsBySymbol returns the log entries for one symbol.
func (s *Store) TransactionsBySymbol(symbol string) ([]models.Transaction, error) {
	var txs []models.Transaction
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := s.db.Where("symbol = ?", symbol).Order("date, id").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to read transactions for %s: %w", symbol, err)
	}
	return txs, nil
}

// TransactionsBetween returns the log entries with from <= date < to.
func (s *Store) TransactionsBetween(from, to time.Time) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := s.db.Where("date >= ? AND date < ?", from, to).Order("date, id").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to read transactions in range: %w", err)
	}
	return txs, nil
}

// ClearTransactions deletes the whole transaction log.
func (s *Store) ClearTransactions() error {
	if err := s.db.Unscoped().Where("1 = 1").Delete(&models.Transaction{}).Error; err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	return nil
}

// UpsertSnapshot records a portfolio value sample. A snapshot already
// stored under the same timestamp is overwritten (last write wins).
func (s *Store) UpsertSnapshot(ts time.Time, value float64) error {
	snap := models.Snapshot{Ts: ts, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ts"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&snap).Error
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// Snapshots returns the value time series ordered by timestamp.
func (s *Store) Snapshots() ([]models.Snapshot, error) {
	var snaps []models.Snapshot
	if err := s.db.Order("ts").Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return snaps, nil
}

// ClearSnapshots deletes the whole snapshot series.
func (s *Store) ClearSnapshots() error {
	if err := s.db.Unscoped().Where("1 = 1").Delete(&models.Snapshot{}).Error; err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return nil
}
