package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nav-tracker/internal/logging"
	"github.com/nav-tracker/internal/metrics"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/storage"
	"github.com/nav-tracker/internal/types"
)

// ScorecardService assembles the per-ticker health view served to clients.
// The assembled scorecard is cached until the next refresh or settings
// change invalidates it.
type ScorecardService struct {
	etfRepo      ETFRepository
	snapshotRepo SnapshotRepository
	metricRepo   MetricRepository
	settingsRepo SettingsRepository
	cache        *storage.CacheService
}

// NewScorecardService creates a new scorecard service
func NewScorecardService(
	etfRepo ETFRepository,
	snapshotRepo SnapshotRepository,
	metricRepo MetricRepository,
	settingsRepo SettingsRepository,
	cache *storage.CacheService,
) *ScorecardService {
	return &ScorecardService{
		etfRepo:      etfRepo,
		snapshotRepo: snapshotRepo,
		metricRepo:   metricRepo,
		settingsRepo: settingsRepo,
		cache:        cache,
	}
}

// ScorecardRow is one ticker's line on the scorecard
type ScorecardRow struct {
	Ticker       string                 `json:"ticker"`
	Name         *string                `json:"name,omitempty"`
	Currency     string                 `json:"currency"`
	Month        *types.Month           `json:"month,omitempty"`
	ErosionRatio *float64               `json:"erosionRatio,omitempty"`
	TrueReturn   *float64               `json:"trueReturn,omitempty"`
	Flag         *types.Flag            `json:"flag,omitempty"`
	Window       *metrics.WindowSummary `json:"window,omitempty"`
}

// Scorecard is the aggregated view of the tracked universe
type Scorecard struct {
	Rows        []ScorecardRow           `json:"rows"`
	Alerts      []ScorecardRow           `json:"alerts,omitempty"`
	Thresholds  models.ThresholdSettings `json:"thresholds"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// MetricsHistory is the per-month metric series for one ticker
type MetricsHistory struct {
	Ticker    string                   `json:"ticker"`
	Metrics   []models.Metric          `json:"metrics"`
	Breakdown []metrics.BreakdownEntry `json:"breakdown,omitempty"`
}

// ETFDetail is the full view of one tracked ticker: the ETF record, its
// raw monthly snapshots, the computed metric series and the cumulative
// breakdown.
type ETFDetail struct {
	ETF       *models.ETF              `json:"etf"`
	Snapshots []models.Snapshot        `json:"snapshots"`
	Metrics   []models.Metric          `json:"metrics"`
	Breakdown []metrics.BreakdownEntry `json:"breakdown,omitempty"`
}

// Scorecard builds the scorecard for all active tickers. Tickers without
// data yet appear with empty metric fields.
func (s *ScorecardService) Scorecard(ctx context.Context) (*Scorecard, error) {
	var cached Scorecard
	hit, err := s.cache.Get(ctx, storage.ScorecardKey, &cached)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Scorecard cache read failed")
	}
	if hit {
		return &cached, nil
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	etfs, err := s.etfRepo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list etfs: %w", err)
	}

	latest, err := s.metricRepo.LatestAll(ctx)
	if err != nil {
		return nil, err
	}

	card := &Scorecard{
		Rows:        make([]ScorecardRow, 0, len(etfs)),
		Thresholds:  *settings,
		GeneratedAt: time.Now().UTC(),
	}

	for _, etf := range etfs {
		row := ScorecardRow{
			Ticker:   etf.Ticker,
			Name:     etf.Name,
			Currency: etf.Currency,
		}

		if metric, ok := latest[etf.ID]; ok {
			month := metric.Month
			flag := metric.Flag
			row.Month = &month
			row.ErosionRatio = &metric.ErosionRatio
			row.TrueReturn = &metric.TrueReturn
			row.Flag = &flag
		}

		snapshots, err := s.snapshotRepo.ListByEtf(ctx, etf.ID)
		if err != nil {
			return nil, err
		}
		if len(snapshots) > 0 {
			window, err := metrics.CalculateWindow(snapshots, *settings)
			if err != nil {
				logging.FromContext(ctx).WithError(err).WithField("ticker", etf.Ticker).
					Warn("Window summary unavailable")
			} else {
				row.Window = window
			}
		}

		card.Rows = append(card.Rows, row)
	}

	card.Alerts = alerts(card.Rows)

	if err := s.cache.Set(ctx, storage.ScorecardKey, card); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Scorecard cache write failed")
	}
	return card, nil
}

// alerts filters the non-OK rows, worst first
func alerts(rows []ScorecardRow) []ScorecardRow {
	var out []ScorecardRow
	for _, row := range rows {
		if row.Flag != nil && *row.Flag != types.FlagOK {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Flag.Severity() > out[j].Flag.Severity()
	})
	return out
}

// History returns the full metric series and cumulative breakdown for one
// ticker.
func (s *ScorecardService) History(ctx context.Context, ticker string) (*MetricsHistory, error) {
	etf, err := s.tracked(ctx, ticker)
	if err != nil {
		return nil, err
	}

	series, err := s.metricRepo.ListByEtf(ctx, etf.ID)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.snapshotRepo.ListByEtf(ctx, etf.ID)
	if err != nil {
		return nil, err
	}

	return &MetricsHistory{
		Ticker:    etf.Ticker,
		Metrics:   series,
		Breakdown: metrics.Breakdown(snapshots),
	}, nil
}

// Detail returns everything stored for one tracked ticker. The result is
// cached per ticker until the next refresh or settings change.
func (s *ScorecardService) Detail(ctx context.Context, ticker string) (*ETFDetail, error) {
	key := storage.TickerKey(storage.ETFDetailPrefix, storage.NormalizeTicker(ticker))

	var cached ETFDetail
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Detail cache read failed")
	}
	if hit {
		return &cached, nil
	}

	etf, err := s.tracked(ctx, ticker)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.snapshotRepo.ListByEtf(ctx, etf.ID)
	if err != nil {
		return nil, err
	}
	series, err := s.metricRepo.ListByEtf(ctx, etf.ID)
	if err != nil {
		return nil, err
	}

	detail := &ETFDetail{
		ETF:       etf,
		Snapshots: snapshots,
		Metrics:   series,
		Breakdown: metrics.Breakdown(snapshots),
	}
	if err := s.cache.Set(ctx, key, detail); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Detail cache write failed")
	}
	return detail, nil
}

func (s *ScorecardService) tracked(ctx context.Context, ticker string) (*models.ETF, error) {
	etf, err := s.etfRepo.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if etf == nil {
		return nil, &types.ServiceError{
			Code:    types.CodeETFNotFound,
			Message: fmt.Sprintf("etf not found: %s", storage.NormalizeTicker(ticker)),
			Details: map[string]any{"ticker": ticker},
		}
	}
	return etf, nil
}

// ExportCSV writes the scorecard as CSV
func (s *ScorecardService) ExportCSV(ctx context.Context, w io.Writer) error {
	card, err := s.Scorecard(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"ticker", "name", "currency", "month", "erosion_ratio", "true_return", "flag"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range card.Rows {
		record := []string{row.Ticker, "", row.Currency, "", "", "", ""}
		if row.Name != nil {
			record[1] = *row.Name
		}
		if row.Month != nil {
			record[3] = row.Month.String()
		}
		if row.ErosionRatio != nil {
			record[4] = strconv.FormatFloat(*row.ErosionRatio, 'f', 6, 64)
		}
		if row.TrueReturn != nil {
			record[5] = strconv.FormatFloat(*row.TrueReturn, 'f', 6, 64)
		}
		if row.Flag != nil {
			record[6] = string(*row.Flag)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
