// Package types defines shared types used across the NAV erosion tracker.
package types

import (
	"fmt"
	"time"
)

// Flag is the risk classification assigned to an ETF month.
type Flag string

const (
	FlagOK      Flag = "OK"
	FlagWarning Flag = "WARNING"
	FlagSell    Flag = "SELL"
)

// IsValid reports whether the flag is one of the known classifications.
func (f Flag) IsValid() bool {
	switch f {
	case FlagOK, FlagWarning, FlagSell:
		return true
	}
	return false
}

// Severity returns an ordering for flags: OK < WARNING < SELL.
func (f Flag) Severity() int {
	switch f {
	case FlagWarning:
		return 1
	case FlagSell:
		return 2
	default:
		return 0
	}
}

// Month identifies a calendar month (year + month), the grain at which
// snapshots and metrics are stored.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t (in t's location).
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a month in "2006-01" form.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// String formats the month as "2006-01".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Date returns the first day of the month in UTC. Used as the storage
// representation for the month column.
func (m Month) Date() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// AddMonths returns the month n calendar months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.Date().AddDate(0, n, 0))
}

// MarshalJSON encodes the month as its "2006-01" string form.
func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes a month from its "2006-01" string form.
func (m *Month) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid month JSON: %s", s)
	}
	parsed, err := ParseMonth(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ServiceError represents a structured error surfaced to API callers.
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Error codes used across the service layer.
const (
	// Fetch errors (data source adapter).
	CodeSymbolNotFound      = "SYMBOL_NOT_FOUND"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeEmptyHistory        = "EMPTY_HISTORY"

	// Validation and configuration errors (metrics engine).
	CodeInvalidSnapshot   = "INVALID_SNAPSHOT"
	CodeInvalidThresholds = "INVALID_THRESHOLDS"

	// API surface errors.
	CodeETFNotFound  = "ETF_NOT_FOUND"
	CodeTickerExists = "TICKER_EXISTS"
	CodeInvalidInput = "INVALID_INPUT"
)

// IsFetchError reports whether err is a recoverable data source failure.
func IsFetchError(err error) bool {
	svcErr, ok := err.(*ServiceError)
	if !ok {
		return false
	}
	switch svcErr.Code {
	case CodeSymbolNotFound, CodeProviderUnavailable, CodeEmptyHistory:
		return true
	}
	return false
}
