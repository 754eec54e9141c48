package usecase

import (
	"context"
	"fmt"
	"time"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	domservice "BarForge/internal/domain/service"
	applogger "BarForge/pkg/logger"
)

// GoldAggregator runs the strategy library over resampled series and
// persists the resulting signals. Indicator and strategy math is pure
// (internal/analytics); this type only moves data.
type GoldAggregator struct {
	bars       domrepo.BarStore
	gold       domrepo.GoldStore
	metrics    domrepo.Metrics
	strategies []domservice.Strategy
	publisher  domrepo.SignalPublisher
	lookback   int
	l          *applogger.Logger
}

func NewGoldAggregator(
	bars domrepo.BarStore,
	gold domrepo.GoldStore,
	metrics domrepo.Metrics,
	strategies []domservice.Strategy,
	lookback int,
) *GoldAggregator {
	if lookback <= 0 {
		lookback = 64
	}
	return &GoldAggregator{
		bars:       bars,
		gold:       gold,
		metrics:    metrics,
		strategies: strategies,
		lookback:   lookback,
	}
}

// SetLogger injects a structured logger.
func (g *GoldAggregator) SetLogger(l *applogger.Logger) { g.l = l }

// SetPublisher injects an outbound signal publisher. Optional; when nil
// signals are only persisted.
func (g *GoldAggregator) SetPublisher(p domrepo.SignalPublisher) { g.publisher = p }

// Aggregate evaluates all strategies for one (symbol, interval) pair and
// upserts the signals, keyed (symbol, interval, date, strategy) so a
// rerun overwrites rather than duplicates.
func (g *GoldAggregator) Aggregate(ctx context.Context, symbol string, interval int) (int, error) {
	start := time.Now()
	bars, err := g.bars.LatestN(ctx, symbol, interval, g.lookback)
	if err != nil {
		return 0, fmt.Errorf("load interval bars: %w", err)
	}
	if len(bars) == 0 {
		return 0, nil
	}

	var all []models.Signal
	for _, s := range g.strategies {
		all = append(all, s.Evaluate(bars)...)
	}
	if len(all) == 0 {
		return 0, nil
	}
	if err := g.gold.UpsertSignals(ctx, all); err != nil {
		return 0, fmt.Errorf("upsert signals: %w", err)
	}
	if g.publisher != nil {
		// signals are already durable; a publish failure only logs
		if err := g.publisher.PublishSignals(ctx, all); err != nil {
			g.metrics.RecordError("signal_publish")
			if g.l != nil {
				g.l.Warn("signal publish failed",
					applogger.String("symbol", symbol), applogger.Error(err))
			}
		}
	}

	g.metrics.RecordLatency("gold_aggregate", time.Since(start).Seconds())
	if g.l != nil {
		g.l.Info("gold aggregated",
			applogger.String("symbol", symbol),
			applogger.Int("interval", interval),
			applogger.Int("signals", len(all)),
		)
	}
	return len(all), nil
}
