package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/types"
)

// MetricRepository handles computed metric persistence
type MetricRepository struct {
	db *PostgresDB
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(db *PostgresDB) *MetricRepository {
	return &MetricRepository{db: db}
}

// UpsertBatch inserts or replaces a batch of metrics
func (r *MetricRepository) UpsertBatch(ctx context.Context, metrics []models.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	query := `
		INSERT INTO metrics (etf_id, month, erosion_ratio, true_return, flag, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (etf_id, month)
		DO UPDATE SET
			erosion_ratio = EXCLUDED.erosion_ratio,
			true_return = EXCLUDED.true_return,
			flag = EXCLUDED.flag,
			computed_at = EXCLUDED.computed_at
	`

	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(query, m.EtfID, m.Month.Date(), m.ErosionRatio, m.TrueReturn, m.Flag, m.ComputedAt)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range metrics {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert metric: %w", err)
		}
	}
	return nil
}

// ListByEtf retrieves all metrics for an ETF ordered by month
func (r *MetricRepository) ListByEtf(ctx context.Context, etfID string) ([]models.Metric, error) {
	query := `
		SELECT etf_id, month, erosion_ratio, true_return, flag, computed_at
		FROM metrics
		WHERE etf_id = $1
		ORDER BY month
	`

	rows, err := r.db.Pool().Query(ctx, query, etfID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	return collectMetrics(rows)
}

// LatestAll retrieves the most recent metric for every ETF keyed by etf_id
func (r *MetricRepository) LatestAll(ctx context.Context) (map[string]models.Metric, error) {
	query := `
		SELECT DISTINCT ON (etf_id)
			etf_id, month, erosion_ratio, true_return, flag, computed_at
		FROM metrics
		ORDER BY etf_id, month DESC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest metrics: %w", err)
	}
	defer rows.Close()

	metrics, err := collectMetrics(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]models.Metric, len(metrics))
	for _, m := range metrics {
		latest[m.EtfID] = m
	}
	return latest, nil
}

// DeleteByEtf deletes all metrics for an ETF
func (r *MetricRepository) DeleteByEtf(ctx context.Context, etfID string) error {
	query := `DELETE FROM metrics WHERE etf_id = $1`
	if _, err := r.db.Pool().Exec(ctx, query, etfID); err != nil {
		return fmt.Errorf("failed to delete metrics: %w", err)
	}
	return nil
}

func collectMetrics(rows pgx.Rows) ([]models.Metric, error) {
	var metrics []models.Metric
	for rows.Next() {
		var metric models.Metric
		var month time.Time
		err := rows.Scan(
			&metric.EtfID,
			&month,
			&metric.ErosionRatio,
			&metric.TrueReturn,
			&metric.Flag,
			&metric.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metric.Month = types.MonthOf(month)
		metrics = append(metrics, metric)
	}
	return metrics, rows.Err()
}
