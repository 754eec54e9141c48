package repository

import (
	"context"
	"time"

	"BarForge/internal/domain/models"
)

// PartitionStore is the bronze tier: append-only raw daily bars grouped
// into partitions by ingestion day. Partitions consumed by a committed
// consolidation are retained for the configured window, then deleted by
// the retention purge; pending partitions are never deleted.
type PartitionStore interface {
	// Append writes bars under the given partition id.
	Append(ctx context.Context, partitionID string, bars []models.RawBar) error
	// ListPartitions returns partition ids currently stored for symbol.
	ListPartitions(ctx context.Context, symbol string) ([]string, error)
	// Load returns all raw bars for symbol across the given partitions.
	Load(ctx context.Context, symbol string, partitionIDs []string) ([]models.RawBar, error)
	// Delete removes the given partitions for symbol only.
	Delete(ctx context.Context, symbol string, partitionIDs []string) error
}

// SeriesStore holds the canonical per-symbol series (silver tier, input
// side). Replace must be atomic: readers see the old or the new series,
// never a partial write.
type SeriesStore interface {
	Load(ctx context.Context, symbol string) (*models.CanonicalSeries, error)
	Replace(ctx context.Context, series *models.CanonicalSeries) error
}

// BarStore holds resampled interval bars (silver tier, output side).
// Upsert is keyed by (symbol, interval, period_index): replaying the same
// deterministic bars is a no-op, which is what makes the
// write-bars-then-advance-watermark commit order safe under crashes.
type BarStore interface {
	UpsertBars(ctx context.Context, bars []models.IntervalBar) error
	// LatestN returns up to n bars in ascending period order.
	LatestN(ctx context.Context, symbol string, interval, n int) ([]models.IntervalBar, error)
	// DeleteAfter removes bars with period end strictly after the date.
	// Used only by explicit rewind and reset.
	DeleteAfter(ctx context.Context, symbol string, interval int, after time.Time) error
}

// WatermarkStore is the checkpoint tier. CompareAndAdvance is the single
// concurrency control point: it fails with models.ErrConflict when the
// stored watermark differs from prior, so exactly one of two racing
// resample runs commits.
type WatermarkStore interface {
	// Get returns the watermark, or (nil, nil) when none exists yet.
	Get(ctx context.Context, symbol string, interval int) (*models.Watermark, error)
	// CompareAndAdvance atomically replaces prior with next. A nil prior
	// means "create, fail if one already exists".
	CompareAndAdvance(ctx context.Context, prior, next *models.Watermark) error
	// Reset removes the watermark unconditionally (rewind/reset paths).
	Reset(ctx context.Context, symbol string, interval int) error
	// Set overwrites the watermark unconditionally. Only the explicit
	// rewind operation may use it.
	Set(ctx context.Context, wm *models.Watermark) error
	List(ctx context.Context, symbol string, intervals []int) ([]models.Watermark, error)
}

// GoldStore persists derived signals, keyed (symbol, interval, date,
// strategy) so reruns overwrite rather than duplicate.
type GoldStore interface {
	UpsertSignals(ctx context.Context, signals []models.Signal) error
	LatestSignals(ctx context.Context, symbol string, limit int) ([]models.Signal, error)
}

// SignalPublisher pushes materialized signals to downstream consumers.
// Publishing happens after the signals are durably stored; a publish
// failure never fails the pipeline run.
type SignalPublisher interface {
	PublishSignals(ctx context.Context, signals []models.Signal) error
}

// RecentBarCache is the non-authoritative TTL window of the most recent
// interval bars. A miss (including TTL expiry) is never an error to the
// pipeline; readers fall back to the BarStore.
type RecentBarCache interface {
	Refresh(ctx context.Context, symbol string, interval int, bars []models.IntervalBar) error
	Get(ctx context.Context, symbol string, interval int) ([]models.IntervalBar, error)
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordBarsMaterialized(symbol string, interval int, count int)
	RecordConsolidation(symbol string, merged int)
	RecordError(kind string)
	RecordConflict(symbol string, interval int)
	RecordLatency(op string, seconds float64)
	RecordWatermarkIndex(symbol string, interval int, index int64)
}
