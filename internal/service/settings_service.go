package service

import (
	"context"
	"fmt"

	"github.com/nav-tracker/internal/logging"
	"github.com/nav-tracker/internal/metrics"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/storage"
)

// SettingsService manages the classification thresholds. Changing them
// recomputes every stored metric so flags always reflect the current
// cutoffs.
type SettingsService struct {
	settingsRepo SettingsRepository
	etfRepo      ETFRepository
	snapshotRepo SnapshotRepository
	metricRepo   MetricRepository
	cache        *storage.CacheService
}

// NewSettingsService creates a new settings service
func NewSettingsService(
	settingsRepo SettingsRepository,
	etfRepo ETFRepository,
	snapshotRepo SnapshotRepository,
	metricRepo MetricRepository,
	cache *storage.CacheService,
) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		etfRepo:      etfRepo,
		snapshotRepo: snapshotRepo,
		metricRepo:   metricRepo,
		cache:        cache,
	}
}

// Get returns the current thresholds
func (s *SettingsService) Get(ctx context.Context) (*models.ThresholdSettings, error) {
	return s.settingsRepo.Get(ctx)
}

// Update validates and stores new thresholds, then recomputes all metrics
// under them.
func (s *SettingsService) Update(ctx context.Context, warningCutoff, sellCutoff float64) (*models.ThresholdSettings, error) {
	settings := &models.ThresholdSettings{
		WarningCutoff: warningCutoff,
		SellCutoff:    sellCutoff,
	}
	if err := metrics.ValidateThresholds(*settings); err != nil {
		return nil, err
	}

	if err := s.settingsRepo.Update(ctx, settings); err != nil {
		return nil, err
	}

	staleKeys, err := s.recomputeAll(ctx, *settings)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, staleKeys...); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate cache")
	}
	return settings, nil
}

// recomputeAll rebuilds metrics for every tracked ETF from its stored
// snapshots and returns the cache keys made stale by the change.
// Snapshots that fail validation keep their previous metric rather than
// blocking the settings change.
func (s *SettingsService) recomputeAll(ctx context.Context, settings models.ThresholdSettings) ([]string, error) {
	etfs, err := s.etfRepo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list etfs: %w", err)
	}

	staleKeys := make([]string, 0, len(etfs)+1)
	staleKeys = append(staleKeys, storage.ScorecardKey)
	for _, etf := range etfs {
		staleKeys = append(staleKeys, storage.TickerKey(storage.ETFDetailPrefix, etf.Ticker))

		snapshots, err := s.snapshotRepo.ListByEtf(ctx, etf.ID)
		if err != nil {
			return nil, err
		}

		computed := make([]models.Metric, 0, len(snapshots))
		for _, snapshot := range snapshots {
			metric, err := metrics.Calculate(snapshot, settings)
			if err != nil {
				logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
					"ticker": etf.Ticker,
					"month":  snapshot.Month.String(),
				}).Warn("Skipping invalid snapshot during recompute")
				continue
			}
			computed = append(computed, metric)
		}

		if err := s.metricRepo.UpsertBatch(ctx, computed); err != nil {
			return nil, err
		}
	}
	return staleKeys, nil
}
