package usecase

import (
	"context"
	"fmt"
	"time"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	applogger "BarForge/pkg/logger"
	"BarForge/pkg/util"
)

// Ingestor validates incoming raw daily bars and lands them in the
// bronze partition store. Partition ids are derived from the ingestion
// day so each batch stays visible until consolidation consumes it.
type Ingestor struct {
	partitions domrepo.PartitionStore
	metrics    domrepo.Metrics
	now        func() time.Time
	l          *applogger.Logger
}

func NewIngestor(partitions domrepo.PartitionStore, metrics domrepo.Metrics) *Ingestor {
	return &Ingestor{
		partitions: partitions,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (i *Ingestor) SetLogger(l *applogger.Logger) { i.l = l }

// Ingest stamps, validates, and appends bars to today's partition.
// The whole batch is rejected when any bar is malformed so partial
// partitions never reach the consolidator.
func (i *Ingestor) Ingest(ctx context.Context, bars []models.RawBar) error {
	if len(bars) == 0 {
		return nil
	}
	now := i.now().UTC()
	for idx := range bars {
		if bars[idx].IngestedAt.IsZero() {
			bars[idx].IngestedAt = now
		}
		if err := validateRawBar(bars[idx]); err != nil {
			i.metrics.RecordError("ingest_validate")
			return fmt.Errorf("bar %d: %w", idx, err)
		}
		bars[idx].Date = util.Midnight(bars[idx].Date)
	}

	start := time.Now()
	partitionID := now.Format(util.DateLayout)
	if err := i.partitions.Append(ctx, partitionID, bars); err != nil {
		i.metrics.RecordError("ingest_append")
		return fmt.Errorf("append partition %s: %w", partitionID, err)
	}
	i.metrics.RecordLatency("ingest_append", time.Since(start).Seconds())

	if i.l != nil {
		i.l.Debug("bars ingested",
			applogger.String("partition", partitionID),
			applogger.Int("count", len(bars)))
	}
	return nil
}

func validateRawBar(b models.RawBar) error {
	if b.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	if b.Date.IsZero() {
		return fmt.Errorf("date required")
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	if b.High.LessThan(b.Low) {
		return fmt.Errorf("high %s below low %s", b.High, b.Low)
	}
	if b.Open.LessThan(b.Low) || b.Open.GreaterThan(b.High) {
		return fmt.Errorf("open %s outside [%s, %s]", b.Open, b.Low, b.High)
	}
	if b.Close.LessThan(b.Low) || b.Close.GreaterThan(b.High) {
		return fmt.Errorf("close %s outside [%s, %s]", b.Close, b.Low, b.High)
	}
	return nil
}
