package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nav-tracker/internal/config"
	"github.com/nav-tracker/internal/provider"
	"github.com/nav-tracker/internal/storage"
	"github.com/nav-tracker/internal/types"
	"github.com/shopspring/decimal"
)

func mustMonth(t *testing.T, s string) types.Month {
	t.Helper()
	m, err := types.ParseMonth(s)
	if err != nil {
		t.Fatalf("ParseMonth(%s) failed: %v", s, err)
	}
	return m
}

func record(t *testing.T, month string, start, end, dist float64) provider.MonthlyRecord {
	t.Helper()
	return provider.MonthlyRecord{
		Month:         mustMonth(t, month),
		StartPrice:    decimal.NewFromFloat(start),
		EndPrice:      decimal.NewFromFloat(end),
		Distributions: decimal.NewFromFloat(dist),
	}
}

type trackerFixture struct {
	etfRepo      *mockETFRepository
	snapshotRepo *mockSnapshotRepository
	metricRepo   *mockMetricRepository
	settingsRepo *mockSettingsRepository
	provider     *mockProvider
	svc          *TrackerService
}

func newTrackerFixture() *trackerFixture {
	f := &trackerFixture{
		etfRepo:      newMockETFRepository(),
		snapshotRepo: newMockSnapshotRepository(),
		metricRepo:   newMockMetricRepository(),
		settingsRepo: newMockSettingsRepository(),
		provider:     newMockProvider(),
	}
	f.svc = NewTrackerService(f.etfRepo, f.snapshotRepo, f.metricRepo, f.settingsRepo, f.provider, nil, 12)
	return f
}

func TestAddETF(t *testing.T) {
	f := newTrackerFixture()
	f.provider.symbols["QYLD"] = &provider.SymbolInfo{
		Ticker:   "QYLD",
		Name:     "Global X NASDAQ 100 Covered Call ETF",
		Currency: "USD",
	}
	f.provider.series["QYLD"] = []provider.MonthlyRecord{
		record(t, "2025-01", 100, 95, 1.0),
		record(t, "2025-02", 95, 94, 0.9),
	}

	etf, err := f.svc.AddETF(context.Background(), "qyld")
	if err != nil {
		t.Fatalf("AddETF failed: %v", err)
	}
	if etf.Ticker != "QYLD" {
		t.Errorf("Ticker = %s, want normalized QYLD", etf.Ticker)
	}
	if etf.Name == nil || *etf.Name != "Global X NASDAQ 100 Covered Call ETF" {
		t.Error("Expected name from symbol lookup")
	}
	if !etf.Active {
		t.Error("New ETF should be active")
	}

	snapshots, _ := f.snapshotRepo.ListByEtf(context.Background(), etf.ID)
	if len(snapshots) != 2 {
		t.Errorf("Expected 2 snapshots, got %d", len(snapshots))
	}
	computed, _ := f.metricRepo.ListByEtf(context.Background(), etf.ID)
	if len(computed) != 2 {
		t.Fatalf("Expected 2 metrics, got %d", len(computed))
	}
	if computed[0].Flag != types.FlagOK {
		t.Errorf("Jan flag = %s, want OK (distributions cover the decline)", computed[0].Flag)
	}
}

func TestAddETFDuplicate(t *testing.T) {
	f := newTrackerFixture()
	f.provider.symbols["QYLD"] = &provider.SymbolInfo{Ticker: "QYLD", Currency: "USD"}
	f.provider.series["QYLD"] = []provider.MonthlyRecord{record(t, "2025-01", 100, 99, 0)}

	if _, err := f.svc.AddETF(context.Background(), "QYLD"); err != nil {
		t.Fatalf("First AddETF failed: %v", err)
	}

	_, err := f.svc.AddETF(context.Background(), "QYLD")
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != types.CodeTickerExists {
		t.Fatalf("Expected TICKER_EXISTS, got %v", err)
	}
}

func TestAddETFUnknownSymbol(t *testing.T) {
	f := newTrackerFixture()

	_, err := f.svc.AddETF(context.Background(), "NOPE")
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != types.CodeSymbolNotFound {
		t.Fatalf("Expected SYMBOL_NOT_FOUND, got %v", err)
	}
	if exists, _ := f.etfRepo.Exists(context.Background(), "NOPE"); exists {
		t.Error("Failed lookup must not create a tracked ETF")
	}
}

func TestAddETFInvalidTicker(t *testing.T) {
	f := newTrackerFixture()

	_, err := f.svc.AddETF(context.Background(), "not a ticker!")
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != types.CodeInvalidInput {
		t.Fatalf("Expected INVALID_INPUT, got %v", err)
	}
}

func TestRefreshETFNotTracked(t *testing.T) {
	f := newTrackerFixture()

	_, err := f.svc.RefreshETF(context.Background(), "QYLD")
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != types.CodeETFNotFound {
		t.Fatalf("Expected ETF_NOT_FOUND, got %v", err)
	}
}

func TestRefreshETFSkipsInvalidSnapshots(t *testing.T) {
	f := newTrackerFixture()
	f.provider.symbols["XYLD"] = &provider.SymbolInfo{Ticker: "XYLD", Currency: "USD"}
	f.provider.series["XYLD"] = []provider.MonthlyRecord{
		record(t, "2025-01", 100, 98, 0),
		record(t, "2025-02", 0, 97, 0), // bad start price
	}

	etf, err := f.svc.AddETF(context.Background(), "XYLD")
	if err != nil {
		t.Fatalf("AddETF failed: %v", err)
	}

	result, err := f.svc.RefreshETF(context.Background(), "XYLD")
	if err != nil {
		t.Fatalf("RefreshETF failed: %v", err)
	}
	if result.Months != 2 {
		t.Errorf("Months = %d, want 2 (snapshots are stored as fetched)", result.Months)
	}
	if result.Metrics != 1 {
		t.Errorf("Metrics = %d, want 1", result.Metrics)
	}
	if len(result.SkippedMonths) != 1 || result.SkippedMonths[0] != "2025-02" {
		t.Errorf("SkippedMonths = %v, want [2025-02]", result.SkippedMonths)
	}

	computed, _ := f.metricRepo.ListByEtf(context.Background(), etf.ID)
	for _, m := range computed {
		if m.Month.String() == "2025-02" {
			t.Error("Invalid snapshot must not produce a metric")
		}
	}
}

func TestRefreshAllCollectsFailures(t *testing.T) {
	f := newTrackerFixture()
	f.provider.symbols["QYLD"] = &provider.SymbolInfo{Ticker: "QYLD", Currency: "USD"}
	f.provider.symbols["RYLD"] = &provider.SymbolInfo{Ticker: "RYLD", Currency: "USD"}
	f.provider.series["QYLD"] = []provider.MonthlyRecord{record(t, "2025-01", 100, 99, 0)}
	f.provider.series["RYLD"] = []provider.MonthlyRecord{record(t, "2025-01", 20, 19, 0)}

	for _, ticker := range []string{"QYLD", "RYLD"} {
		if _, err := f.svc.AddETF(context.Background(), ticker); err != nil {
			t.Fatalf("AddETF(%s) failed: %v", ticker, err)
		}
	}

	// RYLD starts failing at the provider
	delete(f.provider.series, "RYLD")

	result, err := f.svc.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll failed: %v", err)
	}
	if len(result.Refreshed) != 1 || result.Refreshed[0].Ticker != "QYLD" {
		t.Errorf("Refreshed = %+v, want only QYLD", result.Refreshed)
	}
	if _, ok := result.Failed["RYLD"]; !ok {
		t.Errorf("Failed = %v, want RYLD entry", result.Failed)
	}
}

func TestRefreshAllAbortsOnStorageError(t *testing.T) {
	f := newTrackerFixture()
	f.provider.symbols["QYLD"] = &provider.SymbolInfo{Ticker: "QYLD", Currency: "USD"}
	f.provider.series["QYLD"] = []provider.MonthlyRecord{record(t, "2025-01", 100, 99, 0)}

	if _, err := f.svc.AddETF(context.Background(), "QYLD"); err != nil {
		t.Fatalf("AddETF failed: %v", err)
	}

	f.metricRepo.err = errDatabase

	if _, err := f.svc.RefreshAll(context.Background()); !errors.Is(err, errDatabase) {
		t.Fatalf("RefreshAll error = %v, want storage error to abort the run", err)
	}
}

func TestRemoveETF(t *testing.T) {
	f := newTrackerFixture()
	f.provider.symbols["QYLD"] = &provider.SymbolInfo{Ticker: "QYLD", Currency: "USD"}
	f.provider.series["QYLD"] = []provider.MonthlyRecord{record(t, "2025-01", 100, 99, 0)}

	etf, err := f.svc.AddETF(context.Background(), "QYLD")
	if err != nil {
		t.Fatalf("AddETF failed: %v", err)
	}
	if err := f.svc.RemoveETF(context.Background(), "QYLD"); err != nil {
		t.Fatalf("RemoveETF failed: %v", err)
	}

	if snapshots, _ := f.snapshotRepo.ListByEtf(context.Background(), etf.ID); len(snapshots) != 0 {
		t.Errorf("Expected snapshots removed, got %d", len(snapshots))
	}
	if computed, _ := f.metricRepo.ListByEtf(context.Background(), etf.ID); len(computed) != 0 {
		t.Errorf("Expected metrics removed, got %d", len(computed))
	}

	err = f.svc.RemoveETF(context.Background(), "QYLD")
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != types.CodeETFNotFound {
		t.Fatalf("Expected ETF_NOT_FOUND, got %v", err)
	}
}

func TestAddETFFailedRefreshInvalidatesScorecardCache(t *testing.T) {
	f := newTrackerFixture()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	redisCache, err := storage.NewRedisCache(&config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	defer redisCache.Close()
	cache := storage.NewCacheService(redisCache, time.Minute)
	f.svc = NewTrackerService(f.etfRepo, f.snapshotRepo, f.metricRepo, f.settingsRepo, f.provider, cache, 12)

	if err := cache.Set(context.Background(), storage.ScorecardKey, map[string]string{"stale": "card"}); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	// Symbol resolves but history fetch fails, so the ETF is created
	// without data.
	f.provider.symbols["QYLD"] = &provider.SymbolInfo{Ticker: "QYLD", Currency: "USD"}

	etf, err := f.svc.AddETF(context.Background(), "QYLD")
	if err == nil {
		t.Fatal("Expected refresh error from AddETF")
	}
	if etf == nil || etf.Ticker != "QYLD" {
		t.Fatalf("ETF = %+v, want QYLD still tracked", etf)
	}
	if mr.Exists(storage.ScorecardKey) {
		t.Error("Expected stale scorecard cache entry to be invalidated")
	}
}
