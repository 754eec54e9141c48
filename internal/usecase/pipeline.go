package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	applogger "BarForge/pkg/logger"
)

// Modes recognized by the pipeline.
const (
	ModeIncremental = "incremental"
	ModeReset       = "reset"
)

// PipelineConfig carries the knobs the runner needs.
type PipelineConfig struct {
	Intervals  []int
	Mode       string
	Workers    int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	Retention  time.Duration // superseded raw partition retention
}

// Pipeline sequences consolidate -> resample (per interval, parallel) ->
// gold for each symbol. Jobs are stateless between invocations; all
// ordering within a (symbol, interval) comes from the watermark
// compare-and-advance, so any job may be killed and retried freely.
type Pipeline struct {
	consolidator *Consolidator
	resampler    *Resampler
	gold         *GoldAggregator
	watermarks   domrepo.WatermarkStore
	bars         domrepo.BarStore
	metrics      domrepo.Metrics
	cfg          PipelineConfig
	l            *applogger.Logger
}

func NewPipeline(
	consolidator *Consolidator,
	resampler *Resampler,
	gold *GoldAggregator,
	watermarks domrepo.WatermarkStore,
	bars domrepo.BarStore,
	metrics domrepo.Metrics,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeIncremental
	}
	return &Pipeline{
		consolidator: consolidator,
		resampler:    resampler,
		gold:         gold,
		watermarks:   watermarks,
		bars:         bars,
		metrics:      metrics,
		cfg:          cfg,
	}
}

// SetLogger injects a structured logger.
func (p *Pipeline) SetLogger(l *applogger.Logger) { p.l = l }

// Run processes symbols with a bounded worker pool. One symbol's failure
// never blocks or rolls back another's committed state; all errors are
// joined and returned after every symbol finished.
func (p *Pipeline) Run(ctx context.Context, symbols []string) error {
	sem := make(chan struct{}, p.cfg.Workers)
	errCh := make(chan error, len(symbols))
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := p.RunSymbol(ctx, symbol); err != nil {
				errCh <- fmt.Errorf("symbol %s: %w", symbol, err)
			}
		}(symbol)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunSymbol runs the full stage chain for one symbol: consolidate, then
// resample every configured interval in parallel, then gold per interval.
func (p *Pipeline) RunSymbol(ctx context.Context, symbol string) error {
	if p.cfg.Mode == ModeReset {
		if err := p.resetSymbol(ctx, symbol); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	var res *ConsolidateResult
	err := p.withRetry(ctx, "consolidate", func() error {
		var cerr error
		res, cerr = p.consolidator.Consolidate(ctx, symbol)
		return cerr
	})
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	if err := p.consolidator.PurgeSuperseded(ctx, symbol, res.Partitions, p.cfg.Retention, time.Now()); err != nil {
		// retention is housekeeping; log and continue
		if p.l != nil {
			p.l.Warn("partition purge failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(p.cfg.Intervals))
	for _, interval := range p.cfg.Intervals {
		wg.Add(1)
		go func(interval int) {
			defer wg.Done()
			if err := p.runInterval(ctx, symbol, interval, res.EarliestChanged); err != nil {
				errCh <- fmt.Errorf("interval %d: %w", interval, err)
			}
		}(interval)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// runInterval resamples one (symbol, interval) pair and feeds gold.
func (p *Pipeline) runInterval(ctx context.Context, symbol string, interval int, earliestChanged time.Time) error {
	if !earliestChanged.IsZero() {
		wm, err := p.watermarks.Get(ctx, symbol, interval)
		if err != nil {
			return fmt.Errorf("get watermark: %w", err)
		}
		if wm != nil && !earliestChanged.After(wm.LastPeriodEnd) {
			p.metrics.RecordError("rewind_required")
			return &models.RewindRequiredError{
				Symbol:    symbol,
				Interval:  interval,
				Corrected: earliestChanged,
				Watermark: wm.LastPeriodEnd,
			}
		}
	}

	err := p.withRetry(ctx, "resample", func() error {
		_, rerr := p.resampler.Resample(ctx, symbol, interval)
		return rerr
	})
	if err != nil {
		return err
	}

	if p.gold != nil {
		if _, err := p.gold.Aggregate(ctx, symbol, interval); err != nil {
			return fmt.Errorf("gold: %w", err)
		}
	}
	return nil
}

// Rewind is the explicit operator transition for retroactive corrections:
// drop every interval bar past the target date, then move the watermark
// back to the last complete period boundary at or before it. The next
// incremental run reprocesses from there.
func (p *Pipeline) Rewind(ctx context.Context, symbol string, interval int, to time.Time) error {
	if err := p.bars.DeleteAfter(ctx, symbol, interval, to); err != nil {
		return fmt.Errorf("delete bars after %s: %w", to.Format("2006-01-02"), err)
	}

	boundary, ok, err := p.lastBoundaryAtOrBefore(ctx, symbol, interval, to)
	if err != nil {
		return err
	}
	if !ok {
		// correction predates the first complete period: start over
		if err := p.watermarks.Reset(ctx, symbol, interval); err != nil {
			return fmt.Errorf("reset watermark: %w", err)
		}
		if err := p.bars.DeleteAfter(ctx, symbol, interval, time.Time{}); err != nil {
			return fmt.Errorf("clear bars: %w", err)
		}
		if p.l != nil {
			p.l.Info("watermark reset", applogger.String("symbol", symbol), applogger.Int("interval", interval))
		}
		return nil
	}

	if err := p.watermarks.Set(ctx, boundary); err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	if p.l != nil {
		p.l.Info("watermark rewound",
			applogger.String("symbol", symbol),
			applogger.Int("interval", interval),
			applogger.String("to", boundary.LastPeriodEnd.Format("2006-01-02")),
			applogger.Int64("index", boundary.LastPeriodIndex),
		)
	}
	return nil
}

// lastBoundaryAtOrBefore finds the greatest complete period boundary with
// end date <= to, by walking the canonical series in interval steps.
func (p *Pipeline) lastBoundaryAtOrBefore(ctx context.Context, symbol string, interval int, to time.Time) (*models.Watermark, bool, error) {
	series, err := p.resampler.series.Load(ctx, symbol)
	if err != nil {
		return nil, false, fmt.Errorf("load canonical series: %w", err)
	}
	var boundary *models.Watermark
	for idx := int64(0); ; idx++ {
		end := int(idx+1) * interval
		if end > series.Len() {
			break
		}
		endDate := series.Bars[end-1].Date
		if endDate.After(to) {
			break
		}
		boundary = &models.Watermark{
			Symbol:          symbol,
			Interval:        interval,
			LastPeriodEnd:   endDate,
			LastPeriodIndex: idx,
		}
	}
	return boundary, boundary != nil, nil
}

// resetSymbol wipes watermarks and interval bars so the next run
// reprocesses the full history.
func (p *Pipeline) resetSymbol(ctx context.Context, symbol string) error {
	for _, interval := range p.cfg.Intervals {
		if err := p.watermarks.Reset(ctx, symbol, interval); err != nil {
			return fmt.Errorf("reset watermark %d: %w", interval, err)
		}
		if err := p.bars.DeleteAfter(ctx, symbol, interval, time.Time{}); err != nil {
			return fmt.Errorf("clear bars %d: %w", interval, err)
		}
	}
	return nil
}

// withRetry retries transient and conflict failures with capped
// exponential backoff. Rewind-required conditions are never retried:
// they need an operator.
func (p *Pipeline) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := p.cfg.BackoffMin
	var err error
	for attempt := 0; attempt <= p.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > p.cfg.BackoffMax {
				backoff = p.cfg.BackoffMax
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, models.ErrRewindRequired) {
			return err
		}
		p.metrics.RecordError(op + "_retry")
		if p.l != nil {
			p.l.Warn("stage retry",
				applogger.String("op", op),
				applogger.Int("attempt", attempt+1),
				applogger.Error(err))
		}
	}
	return err
}
