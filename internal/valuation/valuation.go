// Package valuation turns holdings, quotes and cash into a point-in-time
// portfolio valuation. Everything here is a pure computation: callers
// decide whether to fetch fresh quotes first.
package valuation

import (
	"math"

	"portfolio-tracker-go/internal/ledger"
	"portfolio-tracker-go/internal/quotes"
)

// Position is the valued state of one holding.
type Position struct {
	Symbol       string  `json:"symbol"`
	Qty          float64 `json:"qty"`
	AvgCost      float64 `json:"avg_cost"`
	LastPrice    float64 `json:"last_price"`
	Value        float64 `json:"value"`
	UnrealizedPL float64 `json:"unrealized_pl"`
	PLPct        float64 `json:"pl_pct"`
	DayChange    float64 `json:"day_change"`
}

// Valuation aggregates all positions plus cash.
type Valuation struct {
	Positions      []Position `json:"positions"`
	TotalValue     float64    `json:"total_value"`
	TotalCost      float64    `json:"total_cost"`
	DayChange      float64    `json:"day_change"`
	Cash           float64    `json:"cash"`
	PortfolioValue float64    `json:"portfolio_value"`
}

// Valuate prices each holding and aggregates the result.
//
// A holding without a quote is priced at its average cost, which makes
// its unrealized P&L flat; a quote without a previous close contributes
// nothing to the day change. A zero cost basis yields a 0% P&L rather
// than a NaN (a position acquired for free has no meaningful return
// ratio).
func Valuate(holdings []ledger.Holding, quoteMap map[string]quotes.Quote, cash float64) Valuation {
	v := Valuation{
		Positions: make([]Position, 0, len(holdings)),
		Cash:      cash,
	}

	for _, h := range holdings {
		lastPrice := h.AvgCost
		prevClose := lastPrice
		if q, ok := quoteMap[h.Symbol]; ok {
			lastPrice = q.Price
			prevClose = lastPrice
			if q.PrevClose != nil {
				prevClose = *q.PrevClose
			}
		}

		cost := h.Qty * h.AvgCost
		value := h.Qty * lastPrice
		pl := value - cost

		var plPct float64
		if cost != 0 {
			plPct = pl / cost * 100
		}
		if math.IsNaN(plPct) || math.IsInf(plPct, 0) {
			plPct = 0
		}

		dayChange := h.Qty * (lastPrice - prevClose)

		v.Positions = append(v.Positions, Position{
			Symbol:       h.Symbol,
			Qty:          h.Qty,
			AvgCost:      h.AvgCost,
			LastPrice:    lastPrice,
			Value:        value,
			UnrealizedPL: pl,
			PLPct:        plPct,
			DayChange:    dayChange,
		})

		v.TotalValue += value
		v.TotalCost += cost
		v.DayChange += dayChange
	}

	v.PortfolioValue = cash + v.TotalValue
	return v
}
