package usecase

import (
	"context"
	"fmt"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	applogger "BarForge/pkg/logger"
)

// BarsQueryUseCase serves read traffic: interval bars (cache first, store
// fallback), the latest quote from the canonical series, and watermark
// listings.
type BarsQueryUseCase struct {
	bars       domrepo.BarStore
	series     domrepo.SeriesStore
	watermarks domrepo.WatermarkStore
	cache      domrepo.RecentBarCache
	l          *applogger.Logger
}

func NewBarsQueryUseCase(
	bars domrepo.BarStore,
	series domrepo.SeriesStore,
	watermarks domrepo.WatermarkStore,
	cache domrepo.RecentBarCache,
) *BarsQueryUseCase {
	return &BarsQueryUseCase{
		bars:       bars,
		series:     series,
		watermarks: watermarks,
		cache:      cache,
	}
}

func (uc *BarsQueryUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

type GetBarsParams struct {
	Symbol   string
	Interval int
	Limit    int
}

type GetBarsResult struct {
	Symbol   string
	Interval int
	Count    int
	Source   string // "cache" or "store"
	Bars     []models.IntervalBar
}

// GetBars returns the most recent interval bars in ascending period
// order. The TTL cache is consulted first; any miss, expiry, or cache
// error silently falls through to the authoritative store.
func (uc *BarsQueryUseCase) GetBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if !domrepo.IsValidInterval(p.Interval) {
		return nil, fmt.Errorf("unsupported interval %d", p.Interval)
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}

	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, p.Symbol, p.Interval)
		if err == nil && len(cached) >= p.Limit {
			return &GetBarsResult{
				Symbol:   p.Symbol,
				Interval: p.Interval,
				Count:    p.Limit,
				Source:   "cache",
				Bars:     cached[len(cached)-p.Limit:],
			}, nil
		}
		if err != nil && uc.l != nil {
			uc.l.Debug("bar cache miss", applogger.String("symbol", p.Symbol), applogger.Error(err))
		}
	}

	bars, err := uc.bars.LatestN(ctx, p.Symbol, p.Interval, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	return &GetBarsResult{
		Symbol:   p.Symbol,
		Interval: p.Interval,
		Count:    len(bars),
		Source:   "store",
		Bars:     bars,
	}, nil
}

type QuoteResult struct {
	Symbol string
	Bar    models.RawBar
}

// GetQuote returns the latest canonical daily bar for symbol.
func (uc *BarsQueryUseCase) GetQuote(ctx context.Context, symbol string) (*QuoteResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	series, err := uc.series.Load(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load canonical series: %w", err)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("no data for %s", symbol)
	}
	return &QuoteResult{
		Symbol: symbol,
		Bar:    series.Bars[series.Len()-1],
	}, nil
}

// GetWatermarks lists checkpoint positions for a symbol across intervals.
func (uc *BarsQueryUseCase) GetWatermarks(ctx context.Context, symbol string, intervals []int) ([]models.Watermark, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if len(intervals) == 0 {
		intervals = domrepo.FibonacciIntervals
	}
	if err := domrepo.ValidateIntervals(intervals); err != nil {
		return nil, err
	}
	wms, err := uc.watermarks.List(ctx, symbol, intervals)
	if err != nil {
		return nil, fmt.Errorf("list watermarks: %w", err)
	}
	return wms, nil
}
