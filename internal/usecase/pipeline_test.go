package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"BarForge/internal/domain/models"
	domservice "BarForge/internal/domain/service"
	internalrepo "BarForge/internal/repository"
	"BarForge/pkg/metrics"
)

type PipelineTestSuite struct {
	suite.Suite

	ctx        context.Context
	partitions *internalrepo.MemoryPartitionStore
	series     *internalrepo.MemorySeriesStore
	bars       *internalrepo.MemoryBarStore
	watermarks *internalrepo.MemoryWatermarkStore
	gold       *internalrepo.MemoryGoldStore

	pipeline *Pipeline
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

func (s *PipelineTestSuite) SetupTest() {
	s.buildPipeline(ModeIncremental, 3, 5)
}

func (s *PipelineTestSuite) buildPipeline(mode string, intervals ...int) {
	s.ctx = context.Background()
	s.partitions = internalrepo.NewMemoryPartitionStore()
	s.series = internalrepo.NewMemorySeriesStore()
	s.bars = internalrepo.NewMemoryBarStore()
	s.watermarks = internalrepo.NewMemoryWatermarkStore()
	s.gold = internalrepo.NewMemoryGoldStore()

	m := metrics.Nop{}
	consolidator := NewConsolidator(s.partitions, s.series, m)
	resampler := NewResampler(s.series, s.bars, s.watermarks, nil, m, 34)
	gold := NewGoldAggregator(s.bars, s.gold, m, []domservice.Strategy{stubStrategy{}}, 0)
	s.pipeline = NewPipeline(consolidator, resampler, gold, s.watermarks, s.bars, m, PipelineConfig{
		Intervals:  intervals,
		Mode:       mode,
		Workers:    2,
		RetryMax:   2,
		BackoffMin: time.Millisecond,
		BackoffMax: 5 * time.Millisecond,
	})
}

func (s *PipelineTestSuite) ingest(symbol string, from, n int, partition string) {
	ingested := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	bars := make([]models.RawBar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, rawBar(symbol, day(from+i), 100+float64(from+i), 1000, ingested))
	}
	s.Require().NoError(s.partitions.Append(s.ctx, partition, bars))
}

func (s *PipelineTestSuite) TestRunMaterializesAllIntervals() {
	s.ingest("AAPL", 0, 21, "p1")

	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))

	s.Len(s.bars.All("AAPL", 3), 7)
	s.Len(s.bars.All("AAPL", 5), 4)

	wm3, err := s.watermarks.Get(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Equal(int64(6), wm3.LastPeriodIndex)
	s.True(wm3.LastPeriodEnd.Equal(day(20)))

	wm5, err := s.watermarks.Get(s.ctx, "AAPL", 5)
	s.Require().NoError(err)
	s.Equal(int64(3), wm5.LastPeriodIndex)
	s.True(wm5.LastPeriodEnd.Equal(day(19)))

	signals, err := s.gold.LatestSignals(s.ctx, "AAPL", 100)
	s.Require().NoError(err)
	s.Len(signals, 11)
}

func (s *PipelineTestSuite) TestRunIsIdempotent() {
	s.ingest("AAPL", 0, 21, "p1")
	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))
	before := s.bars.All("AAPL", 3)

	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))
	s.Equal(before, s.bars.All("AAPL", 3))
}

func (s *PipelineTestSuite) TestRunSymbolIsolation() {
	s.ingest("AAPL", 0, 9, "p1")
	// MSFT has no data at all: consolidate and resample are no-ops
	err := s.pipeline.Run(s.ctx, []string{"AAPL", "MSFT"})
	s.Require().NoError(err)
	s.Len(s.bars.All("AAPL", 3), 3)
	s.Empty(s.bars.All("MSFT", 3))
}

func (s *PipelineTestSuite) TestRetroactiveCorrectionHaltsInterval() {
	s.ingest("AAPL", 0, 9, "p1")
	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))

	// day 1 is re-stated after its period was finalized
	corrected := rawBar("AAPL", day(1), 999, 2000, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s.Require().NoError(s.partitions.Append(s.ctx, "p2", []models.RawBar{corrected}))

	err := s.pipeline.Run(s.ctx, []string{"AAPL"})
	s.Require().Error(err)
	s.True(errors.Is(err, models.ErrRewindRequired))

	var detail *models.RewindRequiredError
	s.Require().True(errors.As(err, &detail))
	s.True(detail.Corrected.Equal(day(1)))

	// committed bars are untouched until the operator rewinds
	s.Len(s.bars.All("AAPL", 3), 3)
}

func (s *PipelineTestSuite) TestRewindThenRunReprocesses() {
	s.ingest("AAPL", 0, 9, "p1")
	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))

	corrected := rawBar("AAPL", day(1), 999, 2000, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s.Require().NoError(s.partitions.Append(s.ctx, "p2", []models.RawBar{corrected}))
	err := s.pipeline.Run(s.ctx, []string{"AAPL"})
	s.Require().True(errors.Is(err, models.ErrRewindRequired))

	// rewind both intervals to before the corrected date
	s.Require().NoError(s.pipeline.Rewind(s.ctx, "AAPL", 3, day(0)))
	s.Require().NoError(s.pipeline.Rewind(s.ctx, "AAPL", 5, day(0)))

	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))

	all := s.bars.All("AAPL", 3)
	s.Require().Len(all, 3)
	// first period now reflects the corrected close of day 1
	s.Equal(int64(4000), all[0].Volume)
}

func (s *PipelineTestSuite) TestRewindToMidHistory() {
	s.ingest("AAPL", 0, 21, "p1")
	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))

	// keep periods ending at or before trading day 8
	s.Require().NoError(s.pipeline.Rewind(s.ctx, "AAPL", 3, day(8)))

	s.Len(s.bars.All("AAPL", 3), 3)
	wm, err := s.watermarks.Get(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Equal(int64(2), wm.LastPeriodIndex)
	s.True(wm.LastPeriodEnd.Equal(day(8)))

	// the next incremental run re-materializes the rest
	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))
	s.Len(s.bars.All("AAPL", 3), 7)
}

func (s *PipelineTestSuite) TestResetModeReprocessesFromScratch() {
	s.ingest("AAPL", 0, 9, "p1")
	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))

	s.buildPipelineKeepingStores(ModeReset, 3, 5)
	s.Require().NoError(s.pipeline.Run(s.ctx, []string{"AAPL"}))

	s.Len(s.bars.All("AAPL", 3), 3)
	wm, err := s.watermarks.Get(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Equal(int64(2), wm.LastPeriodIndex)
}

// buildPipelineKeepingStores swaps the runner config without touching
// stored state.
func (s *PipelineTestSuite) buildPipelineKeepingStores(mode string, intervals ...int) {
	m := metrics.Nop{}
	consolidator := NewConsolidator(s.partitions, s.series, m)
	resampler := NewResampler(s.series, s.bars, s.watermarks, nil, m, 34)
	gold := NewGoldAggregator(s.bars, s.gold, m, []domservice.Strategy{stubStrategy{}}, 0)
	s.pipeline = NewPipeline(consolidator, resampler, gold, s.watermarks, s.bars, m, PipelineConfig{
		Intervals:  intervals,
		Mode:       mode,
		Workers:    2,
		RetryMax:   2,
		BackoffMin: time.Millisecond,
		BackoffMax: 5 * time.Millisecond,
	})
}
