package usecase

import (
	"context"

	"BarForge/internal/domain/models"
	drepo "BarForge/internal/domain/repository"
	mid "BarForge/internal/middleware"
)

// FeedCollector collects live bars from the feed stream and lands them
// through the ingest pipeline.
type FeedCollector struct {
	stream  drepo.BarStream
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
}

// NewFeedCollector creates a new FeedCollector instance.
func NewFeedCollector(stream drepo.BarStream, metrics drepo.Metrics, pipe *mid.IngestPipeline) *FeedCollector {
	return &FeedCollector{stream: stream, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the feed stream is connected.
func (c *FeedCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	barCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, barCh, errCh)
	return nil
}

func (c *FeedCollector) consume(ctx context.Context, barCh <-chan models.RawBar, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case b, ok := <-barCh:
			if !ok {
				return
			}
			_ = c.pipe.Process(ctx, b)
		}
	}
}

func (c *FeedCollector) Stop() error { return c.stream.Close() }

// Shutdown stops the pipeline and closes the stream.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
