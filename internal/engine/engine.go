// Package engine runs the accounting cycle: replay the transaction log,
// fetch quotes, value the portfolio, record a snapshot. One cycle runs
// at a time; the periodic timer is re-armed only after a cycle
// completes, so a slow quote fetch simply delays the next tick.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/models"
	"portfolio-tracker-go/internal/quotes"
	"portfolio-tracker-go/internal/store"
	"portfolio-tracker-go/internal/valuation"
)

// Engine owns the accounting cycle. All triggers (manual commands and
// the periodic tick) funnel into the same single-goroutine run loop.
type Engine struct {
	logger   *zap.Logger
	cfg      *config.Config
	store    *store.Store
	quotes   quotes.Client
	commands chan command
}

// NewEngine creates an engine over the given storage handle and quote
// client.
func NewEngine(logger *zap.Logger, cfg *config.Config, st *store.Store, qc quotes.Client) *Engine {
	return &Engine{
		logger:   logger,
		cfg:      cfg,
		store:    st,
		quotes:   qc,
		commands: make(chan command),
	}
}

// Run starts the engine's loop: an initial cycle, then commands and
// periodic ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.Portfolio.EffectiveRefreshSec()) * time.Second
	e.logger.Info("Starting accounting cycle loop", zap.Duration("interval", interval))

	if err := e.runCycle(ctx); err != nil {
		e.logger.Error("Initial cycle failed", zap.Error(err))
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping engine...")
			return
		case cmd := <-e.commands:
			cmd.reply <- e.handle(ctx, cmd)
		case <-timer.C:
			if err := e.runCycle(ctx); err != nil {
				e.logger.Error("Periodic cycle failed", zap.Error(err))
			}
			// Re-arm only after the cycle is done; settings changes
			// apply from here on.
			interval = time.Duration(e.cfg.Portfolio.EffectiveRefreshSec()) * time.Second
			timer.Reset(interval)
		}
	}
}

// AddTransaction validates and appends a transaction, then runs a cycle.
// A SELL for more units than currently held is rejected with
// OversellError before anything is recorded.
func (e *Engine) AddTransaction(ctx context.Context, tx models.Transaction) error {
	return e.send(ctx, command{kind: cmdAddTransaction, tx: tx})
}

// SellAll liquidates every holding at live quotes, with prices taking
// precedence as manual per-symbol overrides. If any holding resolves no
// price the whole action fails with NoPriceError and nothing is
// recorded.
func (e *Engine) SellAll(ctx context.Context, prices map[string]float64) error {
	return e.send(ctx, command{kind: cmdSellAll, prices: prices})
}

// SnapshotNow runs one full accounting cycle immediately.
func (e *Engine) SnapshotNow(ctx context.Context) error {
	return e.send(ctx, command{kind: cmdSnapshotNow})
}

func (e *Engine) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) handle(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdAddTransaction:
		return e.addTransaction(ctx, cmd.tx)
	case cmdSellAll:
		return e.sellAll(ctx, cmd.prices)
	case cmdSnapshotNow:
		return e.runCycle(ctx)
	default:
		return fmt.Errorf("unknown command kind %d", cmd.kind)
	}
}

func (e *Engine) addTransaction(ctx context.Context, tx models.Transaction) error {
	tx, err := store.ValidateTransaction(tx)
	if err != nil {
		return err
	}

	if tx.Side == models.SideSell {
		held, err := e.heldQty(tx.Symbol)
		if err != nil {
			return err
		}
		if tx.Qty > held+1e-9 {
			return &OversellError{Symbol: tx.Symbol, Held: held, Qty: tx.Qty}
		}
	}

	stored, err := e.store.AddTransaction(tx)
	if err != nil {
		return err
	}
	e.logger.Info("Recorded transaction",
		zap.Uint("id", stored.ID),
		zap.String("symbol", stored.Symbol),
		zap.String("side", stored.Side),
		zap.Float64("qty", stored.Qty),
		zap.Float64("price", stored.Price),
	)

	return e.runCycle(ctx)
}

func (e *Engine) heldQty(symbol string) (float64, error) {
	txs, err := e.store.TransactionsBySymbol(symbol)
	if err != nil {
		return 0, err
	}
	for _, h := range ledger.ComputeHoldings(txs) {
		if h.Symbol == symbol {
			return h.Qty, nil
		}
	}
	return 0, nil
}

func (e *Engine) sellAll(ctx context.Context, manualPrices map[string]float64) error {
	txs, err := e.store.Transactions()
	if err != nil {
		return err
	}
	holdings := ledger.ComputeHoldings(txs)
	if len(holdings) == 0 {
		e.logger.Info("Nothing to sell")
		return nil
	}

	// Fetch quotes only for symbols without a manual override.
	var needQuotes []string
	for _, h := range holdings {
		if _, ok := manualPrices[h.Symbol]; !ok {
			needQuotes = append(needQuotes, h.Symbol)
		}
	}
	quoteMap := e.quotes.FetchQuotes(ctx, needQuotes)

	// Resolve every price before recording anything; a single missing
	// price aborts the whole action.
	prices := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		if p, ok := manualPrices[h.Symbol]; ok {
			prices[h.Symbol] = p
		} else if q, ok := quoteMap[h.Symbol]; ok {
			prices[h.Symbol] = q.Price
		} else {
			return &NoPriceError{Symbol: h.Symbol}
		}
	}

	now := time.Now().UTC()
	for _, h := range holdings {
		if _, err := e.store.AddTransaction(models.Transaction{
			Symbol: h.Symbol,
			Side:   models.SideSell,
			Qty:    h.Qty,
			Price:  prices[h.Symbol],
			Date:   now,
			Notes:  "sell all",
		}); err != nil {
			return err
		}
	}
	e.logger.Info("Liquidated all holdings", zap.Int("positions", len(holdings)))

	return e.cycleWith(quoteMap)
}

// runCycle performs one full pass: replay, quote fetch, valuation,
// snapshot. A snapshot is recorded even when no quotes arrived, with
// unpriced holdings valued at cost basis.
func (e *Engine) runCycle(ctx context.Context) error {
	txs, err := e.store.Transactions()
	if err != nil {
		return err
	}
	holdings := ledger.ComputeHoldings(txs)
	quoteMap := e.quotes.FetchQuotes(ctx, ledger.HeldSymbols(holdings))
	return e.cycleWith(quoteMap)
}

// cycleWith is runCycle with the quote fetch already done.
func (e *Engine) cycleWith(quoteMap map[string]quotes.Quote) error {
	txs, err := e.store.Transactions()
	if err != nil {
		return err
	}
	holdings := ledger.ComputeHoldings(txs)
	cash := ledger.ComputeCash(txs, e.cfg.Portfolio.StartingCash)
	val := valuation.Valuate(holdings, quoteMap, cash)

	ts := time.Now().UTC().Truncate(time.Second)
	if err := e.store.UpsertSnapshot(ts, val.PortfolioValue); err != nil {
		return err
	}

	e.logger.Info("Cycle complete",
		zap.Int("positions", len(holdings)),
		zap.Int("quotes", len(quoteMap)),
		zap.Float64("cash", cash),
		zap.Float64("portfolio_value", val.PortfolioValue),
		zap.Float64("day_change", val.DayChange),
	)
	return nil
}
