package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nav-tracker/internal/config"
	"github.com/nav-tracker/internal/logging"
	"github.com/nav-tracker/internal/retry"
	"github.com/nav-tracker/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// YahooClient fetches price and dividend history from the Yahoo Finance
// chart API. Requests are rate limited client-side and transient failures
// are retried with exponential backoff.
type YahooClient struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	retryConfig *retry.Config
}

// NewYahooClient creates a client from provider configuration.
func NewYahooClient(cfg *config.ProviderConfig) *YahooClient {
	return &YahooClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      &http.Client{Timeout: cfg.RequestTimeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retryConfig: retry.DefaultConfig(),
	}
}

// chartResponse mirrors the subset of the Yahoo v8 chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency  string `json:"currency"`
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortName"`
		LongName  string `json:"longName"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchMonthlySeries retrieves daily history covering lookbackMonths+1 months
// (the extra month establishes a start price for the earliest requested
// month) and aggregates it into calendar-month records.
func (c *YahooClient) FetchMonthlySeries(ctx context.Context, ticker string, lookbackMonths int) ([]MonthlyRecord, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, &types.ServiceError{
			Code:    types.CodeInvalidInput,
			Message: "ticker must not be empty",
		}
	}
	if lookbackMonths < 1 {
		return nil, &types.ServiceError{
			Code:    types.CodeInvalidInput,
			Message: fmt.Sprintf("lookback months must be >= 1, got %d", lookbackMonths),
		}
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -(lookbackMonths + 1), 0)

	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div",
		c.baseURL, ticker, start.Unix(), end.Unix())

	result, err := c.fetchChart(ctx, ticker, url)
	if err != nil {
		return nil, err
	}

	history := historyFromChart(result)
	if len(history.Bars) == 0 {
		return nil, NewEmptyHistoryError(ticker)
	}

	records := AggregateMonthly(history)
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"ticker": ticker,
		"days":   len(history.Bars),
		"months": len(records),
	}).Debug("Fetched monthly series")

	return records, nil
}

// LookupSymbol validates a ticker by requesting a short recent window.
func (c *YahooClient) LookupSymbol(ctx context.Context, ticker string) (*SymbolInfo, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, &types.ServiceError{
			Code:    types.CodeInvalidInput,
			Message: "ticker must not be empty",
		}
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", c.baseURL, ticker)
	result, err := c.fetchChart(ctx, ticker, url)
	if err != nil {
		return nil, err
	}

	name := result.Meta.ShortName
	if name == "" {
		name = result.Meta.LongName
	}
	if name == "" {
		name = ticker
	}
	currency := result.Meta.Currency
	if currency == "" {
		currency = "USD"
	}

	return &SymbolInfo{Ticker: ticker, Name: name, Currency: currency}, nil
}

// fetchChart performs the HTTP request with rate limiting and retry, and
// normalizes provider-level failures into FetchErrors.
func (c *YahooClient) fetchChart(ctx context.Context, ticker, url string) (*chartResult, error) {
	var parsed chartResponse
	var notFound *types.ServiceError

	err := retry.Do(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "nav-tracker/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		// 404 means the ticker is unknown; retrying will not help, so
		// record it and leave the retry loop via the success path.
		if resp.StatusCode == http.StatusNotFound {
			notFound = NewSymbolNotFoundError(ticker)
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, NewProviderUnavailableError(ticker, err)
	}
	if notFound != nil {
		return nil, notFound
	}

	if parsed.Chart.Error != nil {
		if strings.EqualFold(parsed.Chart.Error.Code, "Not Found") {
			return nil, NewSymbolNotFoundError(ticker)
		}
		return nil, NewProviderUnavailableError(ticker, fmt.Errorf("%s: %s",
			parsed.Chart.Error.Code, parsed.Chart.Error.Description))
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, NewEmptyHistoryError(ticker)
	}
	return &parsed.Chart.Result[0], nil
}

// historyFromChart converts a chart result into a daily history, dropping
// days with a null close.
func historyFromChart(result *chartResult) DailyHistory {
	var history DailyHistory

	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i, ts := range result.Timestamp {
			if i >= len(closes) || closes[i] == nil {
				continue
			}
			history.Bars = append(history.Bars, DailyBar{
				Date:  time.Unix(ts, 0).UTC(),
				Close: decimal.NewFromFloat(*closes[i]),
			})
		}
	}

	for _, div := range result.Events.Dividends {
		history.Distributions = append(history.Distributions, Distribution{
			Date:   time.Unix(div.Date, 0).UTC(),
			Amount: decimal.NewFromFloat(div.Amount),
		})
	}
	return history
}
