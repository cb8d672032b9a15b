package models

import (
	"time"
)

// Default threshold cutoffs, as decimal fractions of the starting price.
const (
	DefaultWarningCutoff = -0.06
	DefaultSellCutoff    = -0.10
)

// ThresholdSettings is the per-install singleton that classifies true returns.
// Valid settings satisfy SellCutoff < WarningCutoff < 0.
type ThresholdSettings struct {
	WarningCutoff float64   `json:"warningCutoff" db:"warning_cutoff"`
	SellCutoff    float64   `json:"sellCutoff" db:"sell_cutoff"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// DefaultThresholds returns the built-in cutoffs (-6% warning, -10% sell).
func DefaultThresholds() ThresholdSettings {
	return ThresholdSettings{
		WarningCutoff: DefaultWarningCutoff,
		SellCutoff:    DefaultSellCutoff,
	}
}

// Valid reports whether the cutoffs are ordered correctly.
func (t ThresholdSettings) Valid() bool {
	return t.SellCutoff < t.WarningCutoff && t.WarningCutoff < 0
}
