package metrics

import (
	"sort"

	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/types"
	"github.com/shopspring/decimal"
)

// WindowSummary aggregates a full snapshot window for one ETF: erosion from
// the first month's start price to the last month's end price, total
// distributions over the window, and an annualized distribution yield.
type WindowSummary struct {
	WindowStart        types.Month     `json:"windowStart"`
	WindowEnd          types.Month     `json:"windowEnd"`
	Months             int             `json:"months"`
	StartPrice         decimal.Decimal `json:"startPrice"`
	EndPrice           decimal.Decimal `json:"endPrice"`
	TotalDistributions decimal.Decimal `json:"totalDistributions"`
	ErosionRatio       float64         `json:"erosionRatio"`
	TrueReturn         float64         `json:"trueReturn"`
	DistributionYield  float64         `json:"distributionYield"`
	Flag               types.Flag      `json:"flag"`
}

// BreakdownEntry is one row of the per-month breakdown: the month's close and
// distribution plus erosion accumulated since the start of the window.
type BreakdownEntry struct {
	Month             types.Month     `json:"month"`
	EndPrice          decimal.Decimal `json:"endPrice"`
	Distributions     decimal.Decimal `json:"distributions"`
	CumulativeErosion float64         `json:"cumulativeErosion"`
}

// sortByMonth returns the snapshots ordered oldest to newest.
func sortByMonth(snapshots []models.Snapshot) []models.Snapshot {
	sorted := make([]models.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Month.Before(sorted[j].Month)
	})
	return sorted
}

// CalculateWindow summarizes a window of snapshots against the thresholds.
// The window flag uses the same classification as the per-month metric,
// applied to the whole-window true return.
func CalculateWindow(snapshots []models.Snapshot, thresholds models.ThresholdSettings) (*WindowSummary, error) {
	if err := ValidateThresholds(thresholds); err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, &types.ServiceError{
			Code:    types.CodeInvalidSnapshot,
			Message: "cannot summarize an empty snapshot window",
		}
	}

	sorted := sortByMonth(snapshots)
	for _, s := range sorted {
		if !s.Valid() {
			return nil, &types.ServiceError{
				Code:    types.CodeInvalidSnapshot,
				Message: "snapshot window contains non-positive price data",
				Details: map[string]interface{}{"month": s.Month.String()},
			}
		}
	}

	first := sorted[0]
	last := sorted[len(sorted)-1]

	total := decimal.Zero
	for _, s := range sorted {
		total = total.Add(s.Distributions)
	}

	delta := last.EndPrice.Sub(first.StartPrice)
	erosion := delta.Div(first.StartPrice).InexactFloat64()
	trueReturn := delta.Add(total).Div(first.StartPrice).InexactFloat64()

	// Annualized yield: average monthly distribution times twelve, over the
	// latest price.
	months := int64(len(sorted))
	annualized := total.Div(decimal.NewFromInt(months)).Mul(decimal.NewFromInt(12))
	yield := annualized.Div(last.EndPrice).InexactFloat64()

	return &WindowSummary{
		WindowStart:        first.Month,
		WindowEnd:          last.Month,
		Months:             len(sorted),
		StartPrice:         first.StartPrice,
		EndPrice:           last.EndPrice,
		TotalDistributions: total,
		ErosionRatio:       erosion,
		TrueReturn:         trueReturn,
		DistributionYield:  yield,
		Flag:               Classify(trueReturn, thresholds),
	}, nil
}

// Breakdown computes the cumulative erosion table for a snapshot window,
// ordered oldest to newest. Months whose data is invalid are skipped.
func Breakdown(snapshots []models.Snapshot) []BreakdownEntry {
	sorted := sortByMonth(snapshots)

	entries := make([]BreakdownEntry, 0, len(sorted))
	var base decimal.Decimal
	haveBase := false
	for _, s := range sorted {
		if !s.Valid() {
			continue
		}
		if !haveBase {
			base = s.StartPrice
			haveBase = true
		}
		entries = append(entries, BreakdownEntry{
			Month:             s.Month,
			EndPrice:          s.EndPrice,
			Distributions:     s.Distributions,
			CumulativeErosion: s.EndPrice.Sub(base).Div(base).InexactFloat64(),
		})
	}
	return entries
}
