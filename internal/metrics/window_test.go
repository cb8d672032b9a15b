package metrics

import (
	"testing"

	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateWindow(t *testing.T) {
	thresholds := models.DefaultThresholds()

	// Deliberately out of order: the window must sort by month.
	snapshots := []models.Snapshot{
		snap("2025-03", 96, 94, 0.5),
		snap("2025-01", 100, 98, 0.5),
		snap("2025-02", 98, 96, 0.5),
	}

	summary, err := CalculateWindow(snapshots, thresholds)
	require.NoError(t, err)

	assert.Equal(t, "2025-01", summary.WindowStart.String())
	assert.Equal(t, "2025-03", summary.WindowEnd.String())
	assert.Equal(t, 3, summary.Months)

	// (94 - 100) / 100 = -0.06; with 1.5 distributed, (94 - 100 + 1.5) / 100 = -0.045
	assert.InDelta(t, -0.06, summary.ErosionRatio, epsilon)
	assert.InDelta(t, -0.045, summary.TrueReturn, epsilon)
	assert.Equal(t, types.FlagOK, summary.Flag)

	// (1.5 / 3) * 12 / 94
	assert.InDelta(t, 6.0/94.0, summary.DistributionYield, epsilon)
}

func TestCalculateWindowSingleMonth(t *testing.T) {
	summary, err := CalculateWindow([]models.Snapshot{snap("2025-06", 100, 91, 0)}, models.DefaultThresholds())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Months)
	assert.InDelta(t, -0.09, summary.ErosionRatio, epsilon)
	assert.Equal(t, types.FlagWarning, summary.Flag)
}

func TestCalculateWindowEmpty(t *testing.T) {
	_, err := CalculateWindow(nil, models.DefaultThresholds())
	require.Error(t, err)

	svcErr, ok := err.(*types.ServiceError)
	require.True(t, ok)
	assert.Equal(t, types.CodeInvalidSnapshot, svcErr.Code)
}

func TestCalculateWindowRejectsInvalidSnapshot(t *testing.T) {
	snapshots := []models.Snapshot{
		snap("2025-01", 100, 98, 0),
		snap("2025-02", 0, 96, 0),
	}
	_, err := CalculateWindow(snapshots, models.DefaultThresholds())
	require.Error(t, err)
}

func TestBreakdown(t *testing.T) {
	snapshots := []models.Snapshot{
		snap("2025-02", 98, 96, 0.5),
		snap("2025-01", 100, 98, 0.5),
	}

	entries := Breakdown(snapshots)
	require.Len(t, entries, 2)

	assert.Equal(t, "2025-01", entries[0].Month.String())
	assert.InDelta(t, -0.02, entries[0].CumulativeErosion, epsilon)
	assert.Equal(t, "2025-02", entries[1].Month.String())
	assert.InDelta(t, -0.04, entries[1].CumulativeErosion, epsilon)
}

func TestBreakdownSkipsInvalidMonths(t *testing.T) {
	snapshots := []models.Snapshot{
		snap("2025-01", 100, 98, 0),
		snap("2025-02", -1, 96, 0),
		snap("2025-03", 96, 95, 0),
	}

	entries := Breakdown(snapshots)
	require.Len(t, entries, 2)
	assert.Equal(t, "2025-01", entries[0].Month.String())
	assert.Equal(t, "2025-03", entries[1].Month.String())
}
