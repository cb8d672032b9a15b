package models

import (
	"github.com/nav-tracker/internal/types"
	"github.com/shopspring/decimal"
)

// Snapshot is one calendar month of price and distribution data for an ETF.
// A snapshot is always replaced as a whole record on refresh, never patched.
type Snapshot struct {
	EtfID         string          `json:"etfId" db:"etf_id"`
	Month         types.Month     `json:"month" db:"month"`
	StartPrice    decimal.Decimal `json:"startPrice" db:"start_price"`
	EndPrice      decimal.Decimal `json:"endPrice" db:"end_price"`
	Distributions decimal.Decimal `json:"distributions" db:"distributions"`
}

// Valid reports whether the snapshot satisfies the storage invariants:
// positive prices and non-negative distributions.
func (s *Snapshot) Valid() bool {
	return s.StartPrice.IsPositive() && s.EndPrice.IsPositive() && !s.Distributions.IsNegative()
}
