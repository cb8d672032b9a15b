package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/types"
)

// SettingsRepository handles the threshold settings singleton
type SettingsRepository struct {
	db *PostgresDB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *PostgresDB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves the current threshold settings. Falls back to defaults
// when the settings row is missing.
func (r *SettingsRepository) Get(ctx context.Context) (*models.ThresholdSettings, error) {
	query := `
		SELECT warning_cutoff, sell_cutoff, updated_at
		FROM settings
		WHERE id = 1
	`

	var settings models.ThresholdSettings
	err := r.db.Pool().QueryRow(ctx, query).Scan(
		&settings.WarningCutoff,
		&settings.SellCutoff,
		&settings.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			defaults := models.DefaultThresholds()
			return &defaults, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// Update replaces the threshold settings. Invalid cutoff orderings are
// rejected before touching the database.
func (r *SettingsRepository) Update(ctx context.Context, settings *models.ThresholdSettings) error {
	if !settings.Valid() {
		return &types.ServiceError{
			Code:    types.CodeInvalidThresholds,
			Message: "thresholds must satisfy sell_cutoff < warning_cutoff < 0",
			Details: map[string]any{
				"warning_cutoff": settings.WarningCutoff,
				"sell_cutoff":    settings.SellCutoff,
			},
		}
	}

	settings.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO settings (id, warning_cutoff, sell_cutoff, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET
			warning_cutoff = EXCLUDED.warning_cutoff,
			sell_cutoff = EXCLUDED.sell_cutoff,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		settings.WarningCutoff,
		settings.SellCutoff,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}
