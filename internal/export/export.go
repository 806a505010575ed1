// Package export writes the transaction log and snapshot series as flat
// delimited text: one CSV section per record type, separated by a blank
// line. Free text containing the delimiter is quoted by the CSV writer,
// so the format round-trips losslessly.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"portfolio-tracker-go/internal/models"
)

// Write emits the transactions section, a blank line, then the
// snapshots section.
func Write(w io.Writer, txs []models.Transaction, snaps []models.Snapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"id", "date", "side", "symbol", "qty", "price", "notes"}); err != nil {
		return fmt.Errorf("failed to write transaction header: %w", err)
	}
	for _, tx := range txs {
		record := []string{
			strconv.FormatUint(uint64(tx.ID), 10),
			tx.Date.UTC().Format(time.RFC3339),
			tx.Side,
			tx.Symbol,
			strconv.FormatFloat(tx.Qty, 'f', -1, 64),
			strconv.FormatFloat(tx.Price, 'f', -1, 64),
			tx.Notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write transaction row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	cw = csv.NewWriter(w)
	if err := cw.Write([]string{"ts", "value"}); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	for _, snap := range snaps {
		record := []string{
			snap.Ts.UTC().Format(time.RFC3339),
			strconv.FormatFloat(snap.Value, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write snapshot row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
