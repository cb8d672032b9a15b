package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/types"
)

// Ticker symbol pattern (letters and digits with optional . or - separators)
var tickerRegex = regexp.MustCompile(`^[A-Z0-9]+([.\-][A-Z0-9]+)*$`)

// ETFRepository handles ETF data persistence
type ETFRepository struct {
	db *PostgresDB
}

// NewETFRepository creates a new ETF repository
func NewETFRepository(db *PostgresDB) *ETFRepository {
	return &ETFRepository{db: db}
}

// NormalizeTicker uppercases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ValidateTicker validates a ticker symbol format
func ValidateTicker(ticker string) error {
	if !tickerRegex.MatchString(NormalizeTicker(ticker)) {
		return &types.ServiceError{
			Code:    types.CodeInvalidInput,
			Message: fmt.Sprintf("invalid ticker format: %q", ticker),
			Details: map[string]any{
				"ticker": ticker,
				"format": "letters and digits, optionally separated by . or -",
			},
		}
	}
	return nil
}

// Create creates a new ETF record. The ticker must be unique.
func (r *ETFRepository) Create(ctx context.Context, etf *models.ETF) error {
	if err := ValidateTicker(etf.Ticker); err != nil {
		return err
	}
	etf.Ticker = NormalizeTicker(etf.Ticker)

	if etf.ID == "" {
		etf.ID = uuid.NewString()
	}
	if etf.Currency == "" {
		etf.Currency = "USD"
	}
	if etf.AddedAt.IsZero() {
		etf.AddedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO etfs (id, ticker, name, currency, active, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		etf.ID,
		etf.Ticker,
		etf.Name,
		etf.Currency,
		etf.Active,
		etf.AddedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &types.ServiceError{
				Code:    types.CodeTickerExists,
				Message: fmt.Sprintf("ticker already tracked: %s", etf.Ticker),
				Details: map[string]any{"ticker": etf.Ticker},
			}
		}
		return fmt.Errorf("failed to create etf: %w", err)
	}
	return nil
}

// GetByTicker retrieves an ETF by ticker symbol
func (r *ETFRepository) GetByTicker(ctx context.Context, ticker string) (*models.ETF, error) {
	if err := ValidateTicker(ticker); err != nil {
		return nil, err
	}
	ticker = NormalizeTicker(ticker)

	query := `
		SELECT id, ticker, name, currency, active, added_at
		FROM etfs
		WHERE ticker = $1
	`

	var etf models.ETF
	err := r.db.Pool().QueryRow(ctx, query, ticker).Scan(
		&etf.ID,
		&etf.Ticker,
		&etf.Name,
		&etf.Currency,
		&etf.Active,
		&etf.AddedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get etf: %w", err)
	}
	return &etf, nil
}

// List retrieves tracked ETFs ordered by ticker
func (r *ETFRepository) List(ctx context.Context, activeOnly bool) ([]*models.ETF, error) {
	query := `
		SELECT id, ticker, name, currency, active, added_at
		FROM etfs
	`
	if activeOnly {
		query += " WHERE active = true"
	}
	query += " ORDER BY ticker"

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list etfs: %w", err)
	}
	defer rows.Close()

	var etfs []*models.ETF
	for rows.Next() {
		var etf models.ETF
		err := rows.Scan(
			&etf.ID,
			&etf.Ticker,
			&etf.Name,
			&etf.Currency,
			&etf.Active,
			&etf.AddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan etf: %w", err)
		}
		etfs = append(etfs, &etf)
	}
	return etfs, rows.Err()
}

// Delete deletes an ETF. Snapshots and metrics cascade.
func (r *ETFRepository) Delete(ctx context.Context, ticker string) error {
	if err := ValidateTicker(ticker); err != nil {
		return err
	}
	ticker = NormalizeTicker(ticker)

	query := `DELETE FROM etfs WHERE ticker = $1`
	result, err := r.db.Pool().Exec(ctx, query, ticker)
	if err != nil {
		return fmt.Errorf("failed to delete etf: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &types.ServiceError{
			Code:    types.CodeETFNotFound,
			Message: fmt.Sprintf("etf not found: %s", ticker),
			Details: map[string]any{"ticker": ticker},
		}
	}
	return nil
}

// Exists checks if a ticker is already tracked
func (r *ETFRepository) Exists(ctx context.Context, ticker string) (bool, error) {
	if err := ValidateTicker(ticker); err != nil {
		return false, err
	}
	ticker = NormalizeTicker(ticker)

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM etfs WHERE ticker = $1)`
	err := r.db.Pool().QueryRow(ctx, query, ticker).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check etf existence: %w", err)
	}
	return exists, nil
}
