package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Transaction represents a single executed trade in the append-only log.
// The database assigns the ID on insert; Date is the sole ordering key
// used when replaying the log into holdings.
type Transaction struct {
	gorm.Model
	Symbol string    `gorm:"index;not null" json:"symbol"`
	Side   string    `gorm:"not null" json:"side"` // "BUY" or "SELL"
	Qty    float64   `gorm:"not null" json:"qty"`
	Price  float64   `gorm:"not null" json:"price"`
	Date   time.Time `gorm:"index;not null" json:"date"`
	Notes  string    `json:"notes,omitempty"`
}
