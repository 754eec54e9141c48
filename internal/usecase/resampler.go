package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	applogger "BarForge/pkg/logger"
)

// Resampler turns the unprocessed suffix of a canonical series into
// fixed-width interval bars. Periods are counted by position in the
// series (index arithmetic from the history anchor), never by calendar
// math, so holidays and gaps cannot drift the boundaries.
type Resampler struct {
	series     domrepo.SeriesStore
	bars       domrepo.BarStore
	watermarks domrepo.WatermarkStore
	cache      domrepo.RecentBarCache
	metrics    domrepo.Metrics
	recentN    int
	l          *applogger.Logger
}

func NewResampler(
	series domrepo.SeriesStore,
	bars domrepo.BarStore,
	watermarks domrepo.WatermarkStore,
	cache domrepo.RecentBarCache,
	metrics domrepo.Metrics,
	recentN int,
) *Resampler {
	if recentN <= 0 {
		recentN = 34
	}
	return &Resampler{
		series:     series,
		bars:       bars,
		watermarks: watermarks,
		cache:      cache,
		metrics:    metrics,
		recentN:    recentN,
	}
}

// SetLogger injects a structured logger.
func (r *Resampler) SetLogger(l *applogger.Logger) { r.l = l }

// ResampleResult describes one resample run.
type ResampleResult struct {
	NewBars    []models.IntervalBar
	Watermark  *models.Watermark // watermark after the run (may be the prior one)
	AdvancedTo time.Time         // zero when nothing was materialized
}

// Resample materializes every complete period after the watermark.
//
// Commit order is upsert-bars-then-advance-watermark. Bar upserts are
// keyed by (symbol, interval, period_index) and the aggregation is
// deterministic, so a crash between the two steps leaves orphaned bars
// that the retry overwrites byte-identically before advancing. A lost
// compare-and-advance returns models.ErrConflict and the computed bars
// are discarded (their upserts are indistinguishable from the winner's).
func (r *Resampler) Resample(ctx context.Context, symbol string, interval int) (*ResampleResult, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %d", interval)
	}
	start := time.Now()

	wm, err := r.watermarks.Get(ctx, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	series, err := r.series.Load(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load canonical series: %w", err)
	}

	startIdx := 0
	nextPeriod := int64(0)
	if wm != nil {
		nextPeriod = wm.NextPeriodIndex()
		startIdx = sort.Search(series.Len(), func(i int) bool {
			return series.Bars[i].Date.After(wm.LastPeriodEnd)
		})
		// Finalized history must occupy exactly interval entries per
		// materialized period. Any shift means dates were inserted or
		// removed under the watermark; refuse until an explicit rewind.
		if int64(startIdx) != nextPeriod*int64(interval) {
			r.metrics.RecordError("rewind_required")
			return nil, &models.RewindRequiredError{
				Symbol:    symbol,
				Interval:  interval,
				Corrected: firstDate(series),
				Watermark: wm.LastPeriodEnd,
			}
		}
	}

	suffix := series.Bars[startIdx:]
	complete := len(suffix) / interval
	if complete == 0 {
		// incomplete trailing group (or empty suffix): defer, not an error
		return &ResampleResult{Watermark: wm}, nil
	}

	newBars := make([]models.IntervalBar, 0, complete)
	for g := 0; g < complete; g++ {
		group := suffix[g*interval : (g+1)*interval]
		newBars = append(newBars, models.AggregateBars(symbol, interval, nextPeriod+int64(g), group))
	}
	last := newBars[len(newBars)-1]

	if err := r.bars.UpsertBars(ctx, newBars); err != nil {
		return nil, fmt.Errorf("upsert interval bars: %w", err)
	}

	next := &models.Watermark{
		Symbol:          symbol,
		Interval:        interval,
		LastPeriodEnd:   last.PeriodEnd,
		LastPeriodIndex: last.PeriodIndex,
	}
	if err := r.watermarks.CompareAndAdvance(ctx, wm, next); err != nil {
		r.metrics.RecordConflict(symbol, interval)
		return nil, fmt.Errorf("advance watermark %s/%d: %w", symbol, interval, err)
	}

	r.refreshCache(ctx, symbol, interval)
	r.metrics.RecordBarsMaterialized(symbol, interval, len(newBars))
	r.metrics.RecordWatermarkIndex(symbol, interval, next.LastPeriodIndex)
	r.metrics.RecordLatency("resample", time.Since(start).Seconds())
	if r.l != nil {
		r.l.Info("resampled",
			applogger.String("symbol", symbol),
			applogger.Int("interval", interval),
			applogger.Int("new_bars", len(newBars)),
			applogger.Int64("watermark_index", next.LastPeriodIndex),
		)
	}

	return &ResampleResult{
		NewBars:    newBars,
		Watermark:  next,
		AdvancedTo: next.LastPeriodEnd,
	}, nil
}

// refreshCache rewrites the recent-bar window. Best effort: cache
// failures never fail a committed resample.
func (r *Resampler) refreshCache(ctx context.Context, symbol string, interval int) {
	if r.cache == nil {
		return
	}
	recent, err := r.bars.LatestN(ctx, symbol, interval, r.recentN)
	if err == nil {
		err = r.cache.Refresh(ctx, symbol, interval, recent)
	}
	if err != nil {
		r.metrics.RecordError("cache_refresh")
		if r.l != nil {
			r.l.Warn("recent-bar cache refresh failed",
				applogger.String("symbol", symbol),
				applogger.Int("interval", interval),
				applogger.Error(err))
		}
	}
}

func firstDate(s *models.CanonicalSeries) time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[0].Date
}
