package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/provider"
	"github.com/nav-tracker/internal/storage"
	"github.com/nav-tracker/internal/types"
)

// Mock repositories for testing

type mockETFRepository struct {
	etfs map[string]*models.ETF
	err  error
}

func newMockETFRepository() *mockETFRepository {
	return &mockETFRepository{etfs: map[string]*models.ETF{}}
}

func (m *mockETFRepository) Create(ctx context.Context, etf *models.ETF) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.etfs[etf.Ticker]; ok {
		return &types.ServiceError{Code: types.CodeTickerExists, Message: "ticker already tracked"}
	}
	if etf.ID == "" {
		etf.ID = uuid.NewString()
	}
	m.etfs[etf.Ticker] = etf
	return nil
}

func (m *mockETFRepository) GetByTicker(ctx context.Context, ticker string) (*models.ETF, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.etfs[storage.NormalizeTicker(ticker)], nil
}

func (m *mockETFRepository) List(ctx context.Context, activeOnly bool) ([]*models.ETF, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.ETF
	for _, etf := range m.etfs {
		if activeOnly && !etf.Active {
			continue
		}
		out = append(out, etf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (m *mockETFRepository) Delete(ctx context.Context, ticker string) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.etfs[ticker]; !ok {
		return &types.ServiceError{Code: types.CodeETFNotFound, Message: "etf not found"}
	}
	delete(m.etfs, ticker)
	return nil
}

func (m *mockETFRepository) Exists(ctx context.Context, ticker string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.etfs[ticker]
	return ok, nil
}

type mockSnapshotRepository struct {
	snapshots map[string]map[string]models.Snapshot // etfID -> month -> snapshot
	err       error
}

func newMockSnapshotRepository() *mockSnapshotRepository {
	return &mockSnapshotRepository{snapshots: map[string]map[string]models.Snapshot{}}
}

func (m *mockSnapshotRepository) UpsertBatch(ctx context.Context, snapshots []models.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	for _, s := range snapshots {
		if m.snapshots[s.EtfID] == nil {
			m.snapshots[s.EtfID] = map[string]models.Snapshot{}
		}
		m.snapshots[s.EtfID][s.Month.String()] = s
	}
	return nil
}

func (m *mockSnapshotRepository) ListByEtf(ctx context.Context, etfID string) ([]models.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Snapshot
	for _, s := range m.snapshots[etfID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (m *mockSnapshotRepository) DeleteByEtf(ctx context.Context, etfID string) error {
	delete(m.snapshots, etfID)
	return nil
}

type mockMetricRepository struct {
	metrics map[string]map[string]models.Metric // etfID -> month -> metric
	err     error
}

func newMockMetricRepository() *mockMetricRepository {
	return &mockMetricRepository{metrics: map[string]map[string]models.Metric{}}
}

func (m *mockMetricRepository) UpsertBatch(ctx context.Context, metrics []models.Metric) error {
	if m.err != nil {
		return m.err
	}
	for _, metric := range metrics {
		if m.metrics[metric.EtfID] == nil {
			m.metrics[metric.EtfID] = map[string]models.Metric{}
		}
		m.metrics[metric.EtfID][metric.Month.String()] = metric
	}
	return nil
}

func (m *mockMetricRepository) ListByEtf(ctx context.Context, etfID string) ([]models.Metric, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Metric
	for _, metric := range m.metrics[etfID] {
		out = append(out, metric)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (m *mockMetricRepository) latest(ctx context.Context, etfID string) (*models.Metric, error) {
	all, err := m.ListByEtf(ctx, etfID)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[len(all)-1], nil
}

func (m *mockMetricRepository) LatestAll(ctx context.Context) (map[string]models.Metric, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]models.Metric{}
	for etfID := range m.metrics {
		latest, err := m.latest(ctx, etfID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			out[etfID] = *latest
		}
	}
	return out, nil
}

func (m *mockMetricRepository) DeleteByEtf(ctx context.Context, etfID string) error {
	delete(m.metrics, etfID)
	return nil
}

type mockSettingsRepository struct {
	settings models.ThresholdSettings
	err      error
}

func newMockSettingsRepository() *mockSettingsRepository {
	return &mockSettingsRepository{settings: models.DefaultThresholds()}
}

func (m *mockSettingsRepository) Get(ctx context.Context) (*models.ThresholdSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsRepository) Update(ctx context.Context, settings *models.ThresholdSettings) error {
	if m.err != nil {
		return m.err
	}
	m.settings = *settings
	return nil
}

type mockProvider struct {
	series  map[string][]provider.MonthlyRecord
	symbols map[string]*provider.SymbolInfo
	err     error
	fetches int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		series:  map[string][]provider.MonthlyRecord{},
		symbols: map[string]*provider.SymbolInfo{},
	}
}

func (m *mockProvider) FetchMonthlySeries(ctx context.Context, ticker string, lookbackMonths int) ([]provider.MonthlyRecord, error) {
	m.fetches++
	if m.err != nil {
		return nil, m.err
	}
	records, ok := m.series[ticker]
	if !ok {
		return nil, provider.NewSymbolNotFoundError(ticker)
	}
	return records, nil
}

func (m *mockProvider) LookupSymbol(ctx context.Context, ticker string) (*provider.SymbolInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.symbols[ticker]
	if !ok {
		return nil, provider.NewSymbolNotFoundError(ticker)
	}
	return info, nil
}

var errDatabase = fmt.Errorf("database unavailable")
