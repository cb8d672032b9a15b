// Package service implements the application logic between the HTTP layer
// and storage.
package service

import (
	"context"

	"github.com/nav-tracker/internal/models"
)

// ETFRepository interface for ETF data operations
type ETFRepository interface {
	Create(ctx context.Context, etf *models.ETF) error
	GetByTicker(ctx context.Context, ticker string) (*models.ETF, error)
	List(ctx context.Context, activeOnly bool) ([]*models.ETF, error)
	Delete(ctx context.Context, ticker string) error
	Exists(ctx context.Context, ticker string) (bool, error)
}

// SnapshotRepository interface for snapshot data operations
type SnapshotRepository interface {
	UpsertBatch(ctx context.Context, snapshots []models.Snapshot) error
	ListByEtf(ctx context.Context, etfID string) ([]models.Snapshot, error)
	DeleteByEtf(ctx context.Context, etfID string) error
}

// MetricRepository interface for metric data operations
type MetricRepository interface {
	UpsertBatch(ctx context.Context, metrics []models.Metric) error
	ListByEtf(ctx context.Context, etfID string) ([]models.Metric, error)
	LatestAll(ctx context.Context) (map[string]models.Metric, error)
	DeleteByEtf(ctx context.Context, etfID string) error
}

// SettingsRepository interface for threshold settings
type SettingsRepository interface {
	Get(ctx context.Context) (*models.ThresholdSettings, error)
	Update(ctx context.Context, settings *models.ThresholdSettings) error
}
