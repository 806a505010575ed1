package engine

import (
	"fmt"

	"portfolio-tracker-go/internal/models"
)

// commandKind enumerates the explicit triggers the engine reacts to.
// The periodic tick is internal to the run loop and not a command.
type commandKind int

const (
	cmdAddTransaction commandKind = iota
	cmdSellAll
	cmdSnapshotNow
)

// command is one request to the run loop. Every command runs a full
// accounting cycle after its own work succeeds.
type command struct {
	kind commandKind
	tx   models.Transaction
	// prices are manual per-symbol price overrides for sell-all.
	prices map[string]float64
	reply  chan error
}

// NoPriceError reports that a market-priced action could not resolve a
// price for a symbol. The caller should retry with a manual price.
type NoPriceError struct {
	Symbol string
}

func (e *NoPriceError) Error() string {
	return fmt.Sprintf("no price available for %s, supply a manual price", e.Symbol)
}

// OversellError reports a SELL for more units than currently held.
type OversellError struct {
	Symbol string
	Held   float64
	Qty    float64
}

func (e *OversellError) Error() string {
	return fmt.Sprintf("cannot sell %g %s, only %g held", e.Qty, e.Symbol, e.Held)
}
