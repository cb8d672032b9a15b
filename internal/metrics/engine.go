// Package metrics implements the NAV erosion calculation core.
//
// All functions are pure: given the same snapshot and threshold settings they
// return the same metric, with no hidden state.
package metrics

import (
	"fmt"
	"time"

	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/types"
)

// Calculate derives the metric for a single monthly snapshot.
//
// erosion_ratio = (end - start) / start
// true_return   = erosion_ratio + distributions / start
//
// The flag is classified on true_return, not on erosion alone, so a month
// whose price decline is covered by distributions still reads OK.
func Calculate(snapshot models.Snapshot, thresholds models.ThresholdSettings) (models.Metric, error) {
	if !thresholds.Valid() {
		return models.Metric{}, invalidThresholdsError(thresholds)
	}
	if !snapshot.Valid() {
		return models.Metric{}, &types.ServiceError{
			Code:    types.CodeInvalidSnapshot,
			Message: fmt.Sprintf("snapshot for %s has non-positive price data", snapshot.Month),
			Details: map[string]interface{}{
				"month":      snapshot.Month.String(),
				"startPrice": snapshot.StartPrice.String(),
				"endPrice":   snapshot.EndPrice.String(),
			},
		}
	}

	delta := snapshot.EndPrice.Sub(snapshot.StartPrice)
	erosion := delta.Div(snapshot.StartPrice).InexactFloat64()
	trueReturn := delta.Add(snapshot.Distributions).Div(snapshot.StartPrice).InexactFloat64()

	return models.Metric{
		EtfID:        snapshot.EtfID,
		Month:        snapshot.Month,
		ErosionRatio: erosion,
		TrueReturn:   trueReturn,
		Flag:         Classify(trueReturn, thresholds),
		ComputedAt:   time.Now().UTC(),
	}, nil
}

// Classify maps a true return onto a flag.
// Boundaries: a return exactly at the warning cutoff is WARNING, exactly at
// the sell cutoff is SELL.
func Classify(trueReturn float64, thresholds models.ThresholdSettings) types.Flag {
	switch {
	case trueReturn > thresholds.WarningCutoff:
		return types.FlagOK
	case trueReturn > thresholds.SellCutoff:
		return types.FlagWarning
	default:
		return types.FlagSell
	}
}

// CalculateAll computes metrics for the latest snapshot of each ETF, keyed by
// ticker. ETFs are independent, so failures are collected per ticker rather
// than aborting the batch.
func CalculateAll(latest map[string]models.Snapshot, thresholds models.ThresholdSettings) (map[string]models.Metric, map[string]error) {
	if !thresholds.Valid() {
		errs := make(map[string]error, len(latest))
		for ticker := range latest {
			errs[ticker] = invalidThresholdsError(thresholds)
		}
		return map[string]models.Metric{}, errs
	}

	results := make(map[string]models.Metric, len(latest))
	errs := make(map[string]error)
	for ticker, snapshot := range latest {
		metric, err := Calculate(snapshot, thresholds)
		if err != nil {
			errs[ticker] = err
			continue
		}
		results[ticker] = metric
	}
	return results, errs
}

// ValidateThresholds checks the cutoff ordering invariant without computing
// anything. Used at configuration time so invalid settings never reach the
// store.
func ValidateThresholds(thresholds models.ThresholdSettings) error {
	if !thresholds.Valid() {
		return invalidThresholdsError(thresholds)
	}
	return nil
}

func invalidThresholdsError(thresholds models.ThresholdSettings) *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeInvalidThresholds,
		Message: "threshold cutoffs must satisfy sell_cutoff < warning_cutoff < 0",
		Details: map[string]interface{}{
			"warningCutoff": thresholds.WarningCutoff,
			"sellCutoff":    thresholds.SellCutoff,
		},
	}
}
