package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/types"
)

// SnapshotRepository handles monthly snapshot persistence
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// UpsertBatch inserts or replaces a batch of snapshots. Re-fetched months
// overwrite existing rows for the same (etf_id, month).
func (r *SnapshotRepository) UpsertBatch(ctx context.Context, snapshots []models.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	query := `
		INSERT INTO snapshots (etf_id, month, start_price, end_price, distributions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (etf_id, month)
		DO UPDATE SET
			start_price = EXCLUDED.start_price,
			end_price = EXCLUDED.end_price,
			distributions = EXCLUDED.distributions
	`

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(query,
			s.EtfID,
			s.Month.Date(),
			s.StartPrice,
			s.EndPrice,
			s.Distributions,
		)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range snapshots {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert snapshot: %w", err)
		}
	}
	return nil
}

// ListByEtf retrieves all snapshots for an ETF ordered by month
func (r *SnapshotRepository) ListByEtf(ctx context.Context, etfID string) ([]models.Snapshot, error) {
	query := `
		SELECT etf_id, month, start_price, end_price, distributions
		FROM snapshots
		WHERE etf_id = $1
		ORDER BY month
	`

	rows, err := r.db.Pool().Query(ctx, query, etfID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// DeleteByEtf deletes all snapshots for an ETF
func (r *SnapshotRepository) DeleteByEtf(ctx context.Context, etfID string) error {
	query := `DELETE FROM snapshots WHERE etf_id = $1`
	if _, err := r.db.Pool().Exec(ctx, query, etfID); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}

func scanSnapshot(rows pgx.Rows) (models.Snapshot, error) {
	var snapshot models.Snapshot
	var month time.Time
	err := rows.Scan(
		&snapshot.EtfID,
		&month,
		&snapshot.StartPrice,
		&snapshot.EndPrice,
		&snapshot.Distributions,
	)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snapshot.Month = types.MonthOf(month)
	return snapshot, nil
}
