package models

import (
	"time"
)

// ETF represents a tracked covered-call ETF.
type ETF struct {
	ID       string    `json:"id" db:"id"`
	Ticker   string    `json:"ticker" db:"ticker"`
	Name     *string   `json:"name,omitempty" db:"name"`
	Currency string    `json:"currency" db:"currency"`
	Active   bool      `json:"active" db:"active"`
	AddedAt  time.Time `json:"addedAt" db:"added_at"`
}
