package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	"BarForge/internal/service/ratelimit"
)

// Sink is the minimal landing interface the pipeline needs.
type Sink interface {
	Ingest(ctx context.Context, bars []models.RawBar) error
}

// IngestPipeline sits between the feed and the bronze store. It
// validates, throttles per symbol, and buffers when the store is
// unavailable so live frames are not lost to a transient outage.
type IngestPipeline struct {
	sink    Sink
	metrics domrepo.Metrics
	limiter *ratelimit.Limiter
	maxRPS  float64
	bufSize int
	bufCh   chan models.RawBar
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max bars per second accepted per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = float64(n)
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewIngestPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		sink:    sink,
		metrics: metrics,
		limiter: ratelimit.New(),
		maxRPS:  20,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.RawBar, p.bufSize)
	return p
}

// Start launches background flushing of buffered bars.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case b := <-p.bufCh:
				if err := p.sink.Ingest(ctx, []models.RawBar{b}); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- b:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards one bar, buffering on
// sink errors.
func (p *IngestPipeline) Process(ctx context.Context, b models.RawBar) error {
	if b.Symbol == "" {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("bar without symbol")
	}
	if !p.limiter.Allow(b.Symbol, p.maxRPS, p.maxRPS) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.sink.Ingest(ctx, []models.RawBar{b}); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- b:
		default:
			p.metrics.RecordError("pipeline_buffer_drop")
		}
		return nil
	}
	return nil
}
