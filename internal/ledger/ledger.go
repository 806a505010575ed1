// Package ledger is the portfolio accounting core: it replays the
// append-only transaction log into current holdings under the
// moving-average cost method, and derives the cash balance.
//
// All functions here are pure and total over well-formed input. Input
// validation (positive quantities, known sides) is the ingestion
// boundary's responsibility, not this package's.
package ledger

import (
	"math"
	"sort"
	"strings"

	"portfolio-tracker-go/internal/models"
)

// epsilon under which an accumulated quantity is treated as zero.
// Repeated float64 adds and subtracts leave noise well below this.
const epsilon = 1e-9

// Holding is the derived position for one symbol: units held and the
// average cost paid per unit for the units still held.
type Holding struct {
	Symbol  string  `json:"symbol"`
	Qty     float64 `json:"qty"`
	AvgCost float64 `json:"avg_cost"`
}

// lot is the per-symbol working accumulator during replay.
type lot struct {
	qty  float64
	cost float64
}

// ComputeHoldings folds the transaction log into per-symbol holdings.
//
// Transactions are replayed in ascending date order; the sort is stable,
// so transactions sharing a timestamp keep their insertion order. A BUY
// grows the cost basis by the full trade cost; a SELL removes cost at
// the average cost per unit held before the sale, capped at the quantity
// actually held. Symbols whose quantity ends at or below zero are
// omitted from the result.
func ComputeHoldings(transactions []models.Transaction) []Holding {
	sorted := make([]models.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	lots := make(map[string]*lot)
	for _, t := range sorted {
		symbol := strings.ToUpper(t.Symbol)
		acc, ok := lots[symbol]
		if !ok {
			acc = &lot{}
			lots[symbol] = acc
		}

		qtyBefore := acc.qty
		if t.Side == models.SideSell {
			acc.qty -= t.Qty
			var avg float64
			if qtyBefore > 0 {
				avg = acc.cost / qtyBefore
			}
			acc.cost -= math.Min(qtyBefore, t.Qty) * avg
		} else {
			acc.qty += t.Qty
			acc.cost += t.Qty * t.Price
		}

		// Snap float noise to an exact zero so a full liquidation
		// removes the symbol instead of leaving a dust position.
		if math.Abs(acc.qty) < epsilon {
			acc.qty = 0
			acc.cost = 0
		}
	}

	holdings := make([]Holding, 0, len(lots))
	for symbol, acc := range lots {
		if acc.qty <= 0 {
			continue
		}
		holdings = append(holdings, Holding{
			Symbol:  symbol,
			Qty:     acc.qty,
			AvgCost: acc.cost / acc.qty,
		})
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})
	return holdings
}

// ComputeCash derives the cash balance from the starting capital and the
// transaction cash flows: BUYs debit qty*price, SELLs credit it. The
// fold is commutative, so no ordering is needed.
func ComputeCash(transactions []models.Transaction, startingCash float64) float64 {
	cash := startingCash
	for _, t := range transactions {
		if t.Side == models.SideSell {
			cash += t.Qty * t.Price
		} else {
			cash -= t.Qty * t.Price
		}
	}
	return cash
}

// HeldSymbols returns the symbols of the given holdings, in order.
func HeldSymbols(holdings []Holding) []string {
	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}
	return symbols
}
