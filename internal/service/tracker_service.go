package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nav-tracker/internal/logging"
	"github.com/nav-tracker/internal/metrics"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/provider"
	"github.com/nav-tracker/internal/storage"
	"github.com/nav-tracker/internal/types"
)

// TrackerService manages the tracked ETF universe and keeps snapshots and
// metrics current against the market data provider.
type TrackerService struct {
	etfRepo        ETFRepository
	snapshotRepo   SnapshotRepository
	metricRepo     MetricRepository
	settingsRepo   SettingsRepository
	provider       provider.MarketDataProvider
	cache          *storage.CacheService
	lookbackMonths int
}

// NewTrackerService creates a new tracker service
func NewTrackerService(
	etfRepo ETFRepository,
	snapshotRepo SnapshotRepository,
	metricRepo MetricRepository,
	settingsRepo SettingsRepository,
	marketData provider.MarketDataProvider,
	cache *storage.CacheService,
	lookbackMonths int,
) *TrackerService {
	return &TrackerService{
		etfRepo:        etfRepo,
		snapshotRepo:   snapshotRepo,
		metricRepo:     metricRepo,
		settingsRepo:   settingsRepo,
		provider:       marketData,
		cache:          cache,
		lookbackMonths: lookbackMonths,
	}
}

// RefreshResult summarizes one ticker refresh
type RefreshResult struct {
	Ticker        string   `json:"ticker"`
	Months        int      `json:"months"`
	Metrics       int      `json:"metrics"`
	SkippedMonths []string `json:"skippedMonths,omitempty"`
}

// RefreshAllResult summarizes a refresh across the tracked universe.
// Per-ticker failures do not abort the run.
type RefreshAllResult struct {
	Refreshed []RefreshResult   `json:"refreshed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// AddETF starts tracking a ticker. The symbol is validated against the
// provider before anything is persisted, then history is fetched and
// metrics computed. A provider failure after creation leaves the ETF
// tracked but without data; a later refresh fills it in.
func (s *TrackerService) AddETF(ctx context.Context, ticker string) (*models.ETF, error) {
	if err := storage.ValidateTicker(ticker); err != nil {
		return nil, err
	}
	ticker = storage.NormalizeTicker(ticker)

	exists, err := s.etfRepo.Exists(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to check ticker: %w", err)
	}
	if exists {
		return nil, &types.ServiceError{
			Code:    types.CodeTickerExists,
			Message: fmt.Sprintf("ticker already tracked: %s", ticker),
			Details: map[string]any{"ticker": ticker},
		}
	}

	info, err := s.provider.LookupSymbol(ctx, ticker)
	if err != nil {
		return nil, err
	}

	etf := &models.ETF{
		Ticker:   ticker,
		Currency: info.Currency,
		Active:   true,
	}
	if info.Name != "" && info.Name != ticker {
		etf.Name = &info.Name
	}

	if err := s.etfRepo.Create(ctx, etf); err != nil {
		return nil, err
	}
	// The cached scorecard no longer covers the universe, even if the
	// refresh below fails.
	s.invalidateCaches(ctx, storage.ScorecardKey)

	if _, err := s.refreshETF(ctx, etf); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("ticker", ticker).
			Warn("Initial refresh failed, ticker remains tracked")
		return etf, err
	}
	return etf, nil
}

// RemoveETF stops tracking a ticker. Its snapshots and metrics are
// deleted before the ETF row itself.
func (s *TrackerService) RemoveETF(ctx context.Context, ticker string) error {
	etf, err := s.getTracked(ctx, ticker)
	if err != nil {
		return err
	}
	if err := s.snapshotRepo.DeleteByEtf(ctx, etf.ID); err != nil {
		return err
	}
	if err := s.metricRepo.DeleteByEtf(ctx, etf.ID); err != nil {
		return err
	}
	if err := s.etfRepo.Delete(ctx, etf.Ticker); err != nil {
		return err
	}
	s.invalidateCaches(ctx, storage.ScorecardKey, storage.TickerKey(storage.ETFDetailPrefix, etf.Ticker))
	return nil
}

// ListETFs returns the tracked universe ordered by ticker
func (s *TrackerService) ListETFs(ctx context.Context) ([]*models.ETF, error) {
	return s.etfRepo.List(ctx, false)
}

// RefreshETF re-fetches history for a single ticker and recomputes its
// metrics.
func (s *TrackerService) RefreshETF(ctx context.Context, ticker string) (*RefreshResult, error) {
	etf, err := s.getTracked(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.refreshETF(ctx, etf)
}

// RefreshAll refreshes every active ticker. Failures are collected per
// ticker so one bad symbol does not block the rest.
func (s *TrackerService) RefreshAll(ctx context.Context) (*RefreshAllResult, error) {
	etfs, err := s.etfRepo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list etfs: %w", err)
	}

	result := &RefreshAllResult{Failed: map[string]string{}}
	for _, etf := range etfs {
		res, err := s.refreshETF(ctx, etf)
		if err != nil {
			// Only provider-side failures are survivable per ticker. A
			// storage error means the run itself is broken.
			if !types.IsFetchError(err) {
				return nil, err
			}
			logging.FromContext(ctx).WithError(err).WithField("ticker", etf.Ticker).
				Warn("Refresh failed")
			result.Failed[etf.Ticker] = err.Error()
			continue
		}
		result.Refreshed = append(result.Refreshed, *res)
	}
	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	return result, nil
}

func (s *TrackerService) refreshETF(ctx context.Context, etf *models.ETF) (*RefreshResult, error) {
	records, err := s.provider.FetchMonthlySeries(ctx, etf.Ticker, s.lookbackMonths)
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.Snapshot, 0, len(records))
	for _, rec := range records {
		snapshots = append(snapshots, models.Snapshot{
			EtfID:         etf.ID,
			Month:         rec.Month,
			StartPrice:    rec.StartPrice,
			EndPrice:      rec.EndPrice,
			Distributions: rec.Distributions,
		})
	}
	if err := s.snapshotRepo.UpsertBatch(ctx, snapshots); err != nil {
		return nil, err
	}

	computed, skipped, err := s.computeMetrics(ctx, etf.ID, snapshots)
	if err != nil {
		return nil, err
	}
	s.invalidateCaches(ctx, storage.ScorecardKey, storage.TickerKey(storage.ETFDetailPrefix, etf.Ticker))

	return &RefreshResult{
		Ticker:        etf.Ticker,
		Months:        len(snapshots),
		Metrics:       computed,
		SkippedMonths: skipped,
	}, nil
}

// computeMetrics derives metrics for the given snapshots under the current
// thresholds. Months that fail validation are skipped with a warning
// instead of failing the refresh.
func (s *TrackerService) computeMetrics(ctx context.Context, etfID string, snapshots []models.Snapshot) (int, []string, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return 0, nil, err
	}
	if err := metrics.ValidateThresholds(*settings); err != nil {
		return 0, nil, err
	}

	now := time.Now().UTC()
	computed := make([]models.Metric, 0, len(snapshots))
	var skipped []string
	for _, snapshot := range snapshots {
		metric, err := metrics.Calculate(snapshot, *settings)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"etfId": etfID,
				"month": snapshot.Month.String(),
			}).Warn("Skipping invalid snapshot")
			skipped = append(skipped, snapshot.Month.String())
			continue
		}
		metric.ComputedAt = now
		computed = append(computed, metric)
	}

	if err := s.metricRepo.UpsertBatch(ctx, computed); err != nil {
		return 0, nil, err
	}
	return len(computed), skipped, nil
}

func (s *TrackerService) getTracked(ctx context.Context, ticker string) (*models.ETF, error) {
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

// invalidateCaches drops stale cache entries. Cache errors degrade to a
// warning since the data of record lives in Postgres.
func (s *TrackerService) invalidateCaches(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate cache")
	}
}
