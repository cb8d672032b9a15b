package models

import (
	"time"

	"github.com/nav-tracker/internal/types"
)

// Metric holds the derived erosion figures for one ETF month.
// Derivable from its Snapshot and the threshold settings; recomputed whenever
// either changes.
type Metric struct {
	EtfID        string      `json:"etfId" db:"etf_id"`
	Month        types.Month `json:"month" db:"month"`
	ErosionRatio float64     `json:"erosionRatio" db:"erosion_ratio"`
	TrueReturn   float64     `json:"trueReturn" db:"true_return"`
	Flag         types.Flag  `json:"flag" db:"flag"`
	ComputedAt   time.Time   `json:"computedAt" db:"computed_at"`
}
