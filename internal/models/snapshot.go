package models

import (
	"time"

	"gorm.io/gorm"
)

// Snapshot is one timestamped sample of total portfolio value.
// Ts is the upsert key: recording a second snapshot with the same
// timestamp overwrites the first.
type Snapshot struct {
	gorm.Model
	Ts    time.Time `gorm:"uniqueIndex;not null" json:"ts"`
	Value float64   `gorm:"not null" json:"value"`
}
