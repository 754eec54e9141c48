package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
)

// In-memory store implementations. They back the test suites and the
// `storage: memory` local mode; semantics mirror the ClickHouse/Redis
// implementations, including the watermark compare-and-advance contract.

// MemoryPartitionStore implements PartitionStore in process memory.
type MemoryPartitionStore struct {
	mu sync.RWMutex
	// symbol -> partition id -> bars
	parts map[string]map[string][]models.RawBar
}

func NewMemoryPartitionStore() *MemoryPartitionStore {
	return &MemoryPartitionStore{
		parts: make(map[string]map[string][]models.RawBar),
	}
}

func (s *MemoryPartitionStore) Append(_ context.Context, partitionID string, bars []models.RawBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		if s.parts[b.Symbol] == nil {
			s.parts[b.Symbol] = make(map[string][]models.RawBar)
		}
		s.parts[b.Symbol][partitionID] = append(s.parts[b.Symbol][partitionID], b)
	}
	return nil
}

func (s *MemoryPartitionStore) ListPartitions(_ context.Context, symbol string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.parts[symbol]))
	for id := range s.parts[symbol] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryPartitionStore) Load(_ context.Context, symbol string, partitionIDs []string) ([]models.RawBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RawBar
	for _, id := range partitionIDs {
		out = append(out, s.parts[symbol][id]...)
	}
	return out, nil
}

func (s *MemoryPartitionStore) Delete(_ context.Context, symbol string, partitionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range partitionIDs {
		delete(s.parts[symbol], id)
	}
	return nil
}

// MemorySeriesStore implements SeriesStore with an atomic pointer swap
// per symbol, giving the replace-not-partial guarantee for free.
type MemorySeriesStore struct {
	mu     sync.RWMutex
	series map[string]*models.CanonicalSeries
}

func NewMemorySeriesStore() *MemorySeriesStore {
	return &MemorySeriesStore{series: make(map[string]*models.CanonicalSeries)}
}

func (s *MemorySeriesStore) Load(_ context.Context, symbol string) (*models.CanonicalSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.series[symbol]
	if !ok {
		return &models.CanonicalSeries{Symbol: symbol}, nil
	}
	// copy so resamplers never observe a consolidator mutation mid-flight
	bars := make([]models.RawBar, len(cur.Bars))
	copy(bars, cur.Bars)
	return &models.CanonicalSeries{Symbol: symbol, Bars: bars}, nil
}

func (s *MemorySeriesStore) Replace(_ context.Context, series *models.CanonicalSeries) error {
	bars := make([]models.RawBar, len(series.Bars))
	copy(bars, series.Bars)
	s.mu.Lock()
	s.series[series.Symbol] = &models.CanonicalSeries{Symbol: series.Symbol, Bars: bars}
	s.mu.Unlock()
	return nil
}

// MemoryBarStore implements BarStore keyed by (symbol, interval,
// period_index); upserts of identical bars are no-ops by construction.
type MemoryBarStore struct {
	mu   sync.RWMutex
	bars map[string]map[int]map[int64]models.IntervalBar
}

func NewMemoryBarStore() *MemoryBarStore {
	return &MemoryBarStore{bars: make(map[string]map[int]map[int64]models.IntervalBar)}
}

func (s *MemoryBarStore) UpsertBars(_ context.Context, bars []models.IntervalBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		if s.bars[b.Symbol] == nil {
			s.bars[b.Symbol] = make(map[int]map[int64]models.IntervalBar)
		}
		if s.bars[b.Symbol][b.Interval] == nil {
			s.bars[b.Symbol][b.Interval] = make(map[int64]models.IntervalBar)
		}
		s.bars[b.Symbol][b.Interval][b.PeriodIndex] = b
	}
	return nil
}

func (s *MemoryBarStore) LatestN(_ context.Context, symbol string, interval, n int) ([]models.IntervalBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byIdx := s.bars[symbol][interval]
	idxs := make([]int64, 0, len(byIdx))
	for i := range byIdx {
		idxs = append(idxs, i)
	}
	sort.Slice(idxs, func(a, b int) bool { return idxs[a] < idxs[b] })
	if n > 0 && len(idxs) > n {
		idxs = idxs[len(idxs)-n:]
	}
	out := make([]models.IntervalBar, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, byIdx[i])
	}
	return out, nil
}

func (s *MemoryBarStore) DeleteAfter(_ context.Context, symbol string, interval int, after time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx, b := range s.bars[symbol][interval] {
		if b.PeriodEnd.After(after) {
			delete(s.bars[symbol][interval], idx)
		}
	}
	return nil
}

// All returns every stored bar for a pair in period order. Test helper.
func (s *MemoryBarStore) All(symbol string, interval int) []models.IntervalBar {
	out, _ := s.LatestN(context.Background(), symbol, interval, 0)
	return out
}

// MemoryWatermarkStore implements WatermarkStore; CompareAndAdvance is
// atomic under the store mutex, matching the Redis Lua implementation.
type MemoryWatermarkStore struct {
	mu  sync.Mutex
	wms map[string]models.Watermark
}

func NewMemoryWatermarkStore() *MemoryWatermarkStore {
	return &MemoryWatermarkStore{wms: make(map[string]models.Watermark)}
}

func wmKey(symbol string, interval int) string {
	return fmt.Sprintf("%s/%d", symbol, interval)
}

func (s *MemoryWatermarkStore) Get(_ context.Context, symbol string, interval int) (*models.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wm, ok := s.wms[wmKey(symbol, interval)]
	if !ok {
		return nil, nil
	}
	cp := wm
	return &cp, nil
}

func (s *MemoryWatermarkStore) CompareAndAdvance(_ context.Context, prior, next *models.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := wmKey(next.Symbol, next.Interval)
	stored, exists := s.wms[key]
	if prior == nil {
		if exists {
			return models.ErrConflict
		}
	} else {
		if !exists || !stored.Equal(prior) {
			return models.ErrConflict
		}
	}
	s.wms[key] = *next
	return nil
}

func (s *MemoryWatermarkStore) Reset(_ context.Context, symbol string, interval int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wms, wmKey(symbol, interval))
	return nil
}

func (s *MemoryWatermarkStore) Set(_ context.Context, wm *models.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wms[wmKey(wm.Symbol, wm.Interval)] = *wm
	return nil
}

func (s *MemoryWatermarkStore) List(_ context.Context, symbol string, intervals []int) ([]models.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Watermark, 0, len(intervals))
	for _, iv := range intervals {
		if wm, ok := s.wms[wmKey(symbol, iv)]; ok {
			out = append(out, wm)
		}
	}
	return out, nil
}

// MemoryGoldStore implements GoldStore keyed (symbol, interval, date,
// strategy).
type MemoryGoldStore struct {
	mu      sync.RWMutex
	signals map[string]models.Signal
	order   []string
}

func NewMemoryGoldStore() *MemoryGoldStore {
	return &MemoryGoldStore{signals: make(map[string]models.Signal)}
}

func sigKey(s models.Signal) string {
	return fmt.Sprintf("%s|%d|%s|%s", s.Symbol, s.Interval, s.Date.UTC().Format("2006-01-02"), s.Strategy)
}

func (g *MemoryGoldStore) UpsertSignals(_ context.Context, signals []models.Signal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range signals {
		k := sigKey(s)
		if _, ok := g.signals[k]; !ok {
			g.order = append(g.order, k)
		}
		g.signals[k] = s
	}
	return nil
}

func (g *MemoryGoldStore) LatestSignals(_ context.Context, symbol string, limit int) ([]models.Signal, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []models.Signal
	for i := len(g.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		s := g.signals[g.order[i]]
		if s.Symbol == symbol {
			out = append(out, s)
		}
	}
	return out, nil
}

var (
	_ domrepo.PartitionStore = (*MemoryPartitionStore)(nil)
	_ domrepo.SeriesStore    = (*MemorySeriesStore)(nil)
	_ domrepo.BarStore       = (*MemoryBarStore)(nil)
	_ domrepo.WatermarkStore = (*MemoryWatermarkStore)(nil)
	_ domrepo.GoldStore      = (*MemoryGoldStore)(nil)
)
