// Package provider implements the market data source adapter: it retrieves
// daily price and distribution history for a ticker and aggregates it into
// calendar-month records.
package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nav-tracker/internal/types"
	"github.com/shopspring/decimal"
)

// MonthlyRecord is one calendar month of aggregated market data.
type MonthlyRecord struct {
	Month         types.Month     `json:"month"`
	StartPrice    decimal.Decimal `json:"startPrice"`    // close of the first trading day
	EndPrice      decimal.Decimal `json:"endPrice"`      // close of the last trading day
	Distributions decimal.Decimal `json:"distributions"` // cash distributions paid in the month
}

// DailyBar is a single trading day's closing price.
type DailyBar struct {
	Date  time.Time
	Close decimal.Decimal
}

// Distribution is a single cash distribution event.
type Distribution struct {
	Date   time.Time
	Amount decimal.Decimal
}

// DailyHistory is the raw series returned by the data source.
type DailyHistory struct {
	Bars          []DailyBar
	Distributions []Distribution
}

// SymbolInfo describes a validated ticker.
type SymbolInfo struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// MarketDataProvider is the contract consumed by the tracker service.
// Implementations perform pure retrieval and never persist.
type MarketDataProvider interface {
	// FetchMonthlySeries returns monthly records for the ticker, oldest to
	// newest, covering up to lookbackMonths months. A shorter history yields
	// a shorter sequence, not an error.
	FetchMonthlySeries(ctx context.Context, ticker string, lookbackMonths int) ([]MonthlyRecord, error)

	// LookupSymbol validates that the ticker exists at the data source and
	// returns its display name and currency.
	LookupSymbol(ctx context.Context, ticker string) (*SymbolInfo, error)
}

// AggregateMonthly buckets a daily history into calendar months (UTC dates).
// A month with no trading days is absent from the output, even if a
// distribution was dated within it. Records are ordered oldest to newest.
func AggregateMonthly(history DailyHistory) []MonthlyRecord {
	if len(history.Bars) == 0 {
		return nil
	}

	bars := make([]DailyBar, len(history.Bars))
	copy(bars, history.Bars)
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	distByMonth := make(map[types.Month]decimal.Decimal)
	for _, d := range history.Distributions {
		m := types.MonthOf(d.Date.UTC())
		distByMonth[m] = distByMonth[m].Add(d.Amount)
	}

	var records []MonthlyRecord
	for _, bar := range bars {
		m := types.MonthOf(bar.Date.UTC())
		if n := len(records); n > 0 && records[n-1].Month == m {
			records[n-1].EndPrice = bar.Close
			continue
		}
		records = append(records, MonthlyRecord{
			Month:         m,
			StartPrice:    bar.Close,
			EndPrice:      bar.Close,
			Distributions: distByMonth[m],
		})
	}
	return records
}

// FetchError constructors. All three codes are recoverable conditions that
// the caller reports per ticker.

func NewSymbolNotFoundError(ticker string) *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeSymbolNotFound,
		Message: fmt.Sprintf("unknown or delisted ticker: %s", ticker),
		Details: map[string]interface{}{"ticker": ticker},
	}
}

func NewProviderUnavailableError(ticker string, cause error) *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeProviderUnavailable,
		Message: fmt.Sprintf("market data source unreachable for %s", ticker),
		Details: map[string]interface{}{"ticker": ticker, "cause": cause.Error()},
	}
}

func NewEmptyHistoryError(ticker string) *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeEmptyHistory,
		Message: fmt.Sprintf("no trading days returned for %s", ticker),
		Details: map[string]interface{}{"ticker": ticker},
	}
}
