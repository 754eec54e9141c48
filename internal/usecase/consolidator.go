package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	applogger "BarForge/pkg/logger"
	"BarForge/pkg/util"
)

// Consolidator merges all raw bronze partitions for a symbol into the
// canonical per-symbol series. Dedup rule: per date keep the record with
// the latest IngestedAt; ties break on larger volume, then lexicographically
// greatest serialized form, so output is deterministic regardless of
// partition read order.
type Consolidator struct {
	partitions domrepo.PartitionStore
	series     domrepo.SeriesStore
	metrics    domrepo.Metrics
	l          *applogger.Logger
}

func NewConsolidator(partitions domrepo.PartitionStore, series domrepo.SeriesStore, metrics domrepo.Metrics) *Consolidator {
	return &Consolidator{partitions: partitions, series: series, metrics: metrics}
}

// SetLogger injects a structured logger.
func (c *Consolidator) SetLogger(l *applogger.Logger) { c.l = l }

// ConsolidateResult describes one consolidation run.
type ConsolidateResult struct {
	Series           *models.CanonicalSeries
	MergedPartitions int
	MergedBars       int
	// Partitions lists the ids consumed by this run. Only these are
	// eligible for the retention purge.
	Partitions []string
	// EarliestChanged is the earliest date whose already-merged content
	// changed or that was backfilled before the previous series maximum.
	// Zero when the run only appended (or was a no-op). Resampling for a
	// (symbol, interval) whose watermark covers this date must not proceed
	// until the watermark is explicitly rewound.
	EarliestChanged time.Time
}

// Consolidate merges raw partitions into the canonical series for symbol.
// Dedup is idempotent, so consumed partitions stay in place and re-merge
// to byte-identical stored state until PurgeSuperseded removes them.
func (c *Consolidator) Consolidate(ctx context.Context, symbol string) (*ConsolidateResult, error) {
	start := time.Now()

	prev, err := c.series.Load(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load canonical series: %w", err)
	}

	ids, err := c.partitions.ListPartitions(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	if len(ids) == 0 {
		// nothing pending; stored state untouched
		return &ConsolidateResult{Series: prev}, nil
	}

	raw, err := c.partitions.Load(ctx, symbol, ids)
	if err != nil {
		return nil, fmt.Errorf("load partitions: %w", err)
	}

	combined := make([]models.RawBar, 0, prev.Len()+len(raw))
	combined = append(combined, prev.Bars...)
	combined = append(combined, raw...)
	merged := dedupByDate(combined)

	next := &models.CanonicalSeries{Symbol: symbol, Bars: merged}
	earliest := earliestCorrection(prev, next)

	if err := c.series.Replace(ctx, next); err != nil {
		// partitions untouched; the next run retries from scratch
		return nil, fmt.Errorf("replace canonical series: %w", err)
	}

	c.metrics.RecordConsolidation(symbol, len(raw))
	c.metrics.RecordLatency("consolidate", time.Since(start).Seconds())
	if c.l != nil {
		c.l.Info("consolidated",
			applogger.String("symbol", symbol),
			applogger.Int("partitions", len(ids)),
			applogger.Int("raw_bars", len(raw)),
			applogger.Int("series_len", len(merged)),
		)
	}

	return &ConsolidateResult{
		Series:           next,
		MergedPartitions: len(ids),
		MergedBars:       len(raw),
		Partitions:       ids,
		EarliestChanged:  earliest,
	}, nil
}

// PurgeSuperseded deletes consumed partitions once they age past the
// retention window. Only ids returned by a committed Consolidate are
// eligible, so pending data of other symbols is never touched.
func (c *Consolidator) PurgeSuperseded(ctx context.Context, symbol string, consumed []string, retention time.Duration, now time.Time) error {
	if retention <= 0 || len(consumed) == 0 {
		return nil
	}
	// partition ids are ingestion days, so a lexicographic compare works
	cutoff := now.Add(-retention).UTC().Format(util.DateLayout)
	old := make([]string, 0, len(consumed))
	for _, id := range consumed {
		if id < cutoff {
			old = append(old, id)
		}
	}
	if len(old) == 0 {
		return nil
	}
	if err := c.partitions.Delete(ctx, symbol, old); err != nil {
		return fmt.Errorf("purge partitions: %w", err)
	}
	if c.l != nil {
		c.l.Info("purged superseded partitions",
			applogger.String("symbol", symbol), applogger.Int("partitions", len(old)))
	}
	return nil
}

func dedupByDate(bars []models.RawBar) []models.RawBar {
	best := make(map[time.Time]models.RawBar, len(bars))
	for _, b := range bars {
		d := b.Date.UTC()
		cur, ok := best[d]
		if !ok || supersedes(b, cur) {
			best[d] = b
		}
	}
	out := make([]models.RawBar, 0, len(best))
	for _, b := range best {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// supersedes reports whether a should replace b for the same date.
func supersedes(a, b models.RawBar) bool {
	if !a.IngestedAt.Equal(b.IngestedAt) {
		return a.IngestedAt.After(b.IngestedAt)
	}
	if a.Volume != b.Volume {
		return a.Volume > b.Volume
	}
	return a.Serialized() > b.Serialized()
}

// earliestCorrection compares the previous and next canonical series and
// returns the earliest date at or before the previous maximum whose bar
// content changed or appeared. Pure appends never count.
func earliestCorrection(prev, next *models.CanonicalSeries) time.Time {
	if prev.Len() == 0 {
		return time.Time{}
	}
	prevByDate := make(map[time.Time]models.RawBar, prev.Len())
	for _, b := range prev.Bars {
		prevByDate[b.Date.UTC()] = b
	}
	prevMax := prev.Bars[prev.Len()-1].Date

	var earliest time.Time
	for _, b := range next.Bars {
		if b.Date.After(prevMax) {
			break // appends only from here on
		}
		old, ok := prevByDate[b.Date.UTC()]
		if ok && b.SameContent(old) {
			continue
		}
		if earliest.IsZero() || b.Date.Before(earliest) {
			earliest = b.Date
		}
	}
	return earliest
}
