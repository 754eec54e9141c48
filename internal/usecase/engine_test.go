package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"BarForge/internal/domain/models"
	domservice "BarForge/internal/domain/service"
	internalrepo "BarForge/internal/repository"
	"BarForge/pkg/metrics"
)

type EngineTestSuite struct {
	suite.Suite

	ctx        context.Context
	partitions *internalrepo.MemoryPartitionStore
	series     *internalrepo.MemorySeriesStore
	bars       *internalrepo.MemoryBarStore
	watermarks *internalrepo.MemoryWatermarkStore
	gold       *internalrepo.MemoryGoldStore

	consolidator *Consolidator
	resampler    *Resampler
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.partitions = internalrepo.NewMemoryPartitionStore()
	s.series = internalrepo.NewMemorySeriesStore()
	s.bars = internalrepo.NewMemoryBarStore()
	s.watermarks = internalrepo.NewMemoryWatermarkStore()
	s.gold = internalrepo.NewMemoryGoldStore()

	m := metrics.Nop{}
	s.consolidator = NewConsolidator(s.partitions, s.series, m)
	s.resampler = NewResampler(s.series, s.bars, s.watermarks, nil, m, 34)
}

func day(n int) time.Time {
	// consecutive trading days, weekends skipped
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d = d.AddDate(0, 0, 1)
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
	}
	return d
}

func rawBar(symbol string, date time.Time, close float64, volume int64, ingested time.Time) models.RawBar {
	c := decimal.NewFromFloat(close)
	return models.RawBar{
		Symbol:     symbol,
		Date:       date,
		Open:       c.Sub(decimal.NewFromInt(1)),
		High:       c.Add(decimal.NewFromInt(2)),
		Low:        c.Sub(decimal.NewFromInt(2)),
		Close:      c,
		Volume:     volume,
		IngestedAt: ingested,
	}
}

// seed appends n consecutive daily bars starting at trading day `from`
// under one partition and consolidates.
func (s *EngineTestSuite) seed(symbol string, from, n int, partition string) {
	ingested := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	bars := make([]models.RawBar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, rawBar(symbol, day(from+i), 100+float64(from+i), 1000, ingested))
	}
	s.Require().NoError(s.partitions.Append(s.ctx, partition, bars))
	_, err := s.consolidator.Consolidate(s.ctx, symbol)
	s.Require().NoError(err)
}

func (s *EngineTestSuite) TestConsolidateLatestIngestionWins() {
	early := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC)

	s.Require().NoError(s.partitions.Append(s.ctx, "p1", []models.RawBar{
		rawBar("AAPL", day(0), 100, 500, early),
	}))
	s.Require().NoError(s.partitions.Append(s.ctx, "p2", []models.RawBar{
		rawBar("AAPL", day(0), 101, 400, late),
	}))

	res, err := s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Require().Equal(1, res.Series.Len())
	s.True(res.Series.Bars[0].Close.Equal(decimal.NewFromInt(101)))
}

func (s *EngineTestSuite) TestConsolidateTieBreaksOnVolume() {
	ingested := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)

	s.Require().NoError(s.partitions.Append(s.ctx, "p1", []models.RawBar{
		rawBar("AAPL", day(0), 100, 500, ingested),
		rawBar("AAPL", day(0), 101, 900, ingested),
	}))

	res, err := s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Require().Equal(1, res.Series.Len())
	s.Equal(int64(900), res.Series.Bars[0].Volume)
}

func (s *EngineTestSuite) TestConsolidateIdempotent() {
	s.seed("AAPL", 0, 5, "p1")
	first, err := s.series.Load(s.ctx, "AAPL")
	s.Require().NoError(err)

	// retained partitions re-merge to byte-identical stored state
	res, err := s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.True(res.EarliestChanged.IsZero())

	second, err := s.series.Load(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *EngineTestSuite) TestPurgeRemovesAgedConsumedPartitions() {
	ingested := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
	s.Require().NoError(s.partitions.Append(s.ctx, "2024-01-02", []models.RawBar{
		rawBar("AAPL", day(0), 100, 500, ingested),
	}))
	res, err := s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Equal([]string{"2024-01-02"}, res.Partitions)

	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.consolidator.PurgeSuperseded(s.ctx, "AAPL", res.Partitions, 7*24*time.Hour, now))

	ids, err := s.partitions.ListPartitions(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Empty(ids)

	// next run sees nothing pending; stored series untouched
	res, err = s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Equal(0, res.MergedPartitions)
	s.Equal(1, res.Series.Len())
}

func (s *EngineTestSuite) TestPurgeKeepsPendingPartitions() {
	ingested := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
	s.Require().NoError(s.partitions.Append(s.ctx, "2024-01-02", []models.RawBar{
		rawBar("AAPL", day(0), 100, 500, ingested),
	}))
	s.Require().NoError(s.partitions.Append(s.ctx, "2024-01-02", []models.RawBar{
		rawBar("MSFT", day(0), 300, 700, ingested),
	}))

	// only AAPL consolidates; MSFT's equally old raw data stays pending
	res, err := s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)

	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.consolidator.PurgeSuperseded(s.ctx, "AAPL", res.Partitions, 24*time.Hour, now))

	ids, err := s.partitions.ListPartitions(s.ctx, "MSFT")
	s.Require().NoError(err)
	s.Equal([]string{"2024-01-02"}, ids)

	msftRes, err := s.consolidator.Consolidate(s.ctx, "MSFT")
	s.Require().NoError(err)
	s.Require().Equal(1, msftRes.Series.Len())
	s.True(msftRes.Series.Bars[0].Close.Equal(decimal.NewFromInt(300)))
}

func (s *EngineTestSuite) TestPurgeHonorsRetentionWindow() {
	ingested := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
	s.Require().NoError(s.partitions.Append(s.ctx, "2024-01-02", []models.RawBar{
		rawBar("AAPL", day(0), 100, 500, ingested),
	}))
	res, err := s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)

	// cutoff 2023-12-29 is before the partition day: nothing to purge yet
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.consolidator.PurgeSuperseded(s.ctx, "AAPL", res.Partitions, 7*24*time.Hour, now))

	ids, err := s.partitions.ListPartitions(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Equal([]string{"2024-01-02"}, ids)
}

func (s *EngineTestSuite) TestConsolidateAppendIsNotCorrection() {
	s.seed("AAPL", 0, 5, "p1")

	ingested := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.partitions.Append(s.ctx, "p2", []models.RawBar{
		rawBar("AAPL", day(5), 200, 1000, ingested),
	}))
	res, err := s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.True(res.EarliestChanged.IsZero())
}

func (s *EngineTestSuite) TestConsolidateDetectsRetroactiveCorrection() {
	s.seed("AAPL", 0, 5, "p1")

	ingested := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.partitions.Append(s.ctx, "p2", []models.RawBar{
		rawBar("AAPL", day(1), 999, 1000, ingested),
	}))
	res, err := s.consolidator.Consolidate(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.True(res.EarliestChanged.Equal(day(1)))
}

func (s *EngineTestSuite) TestResampleNineDaysIntervalThree() {
	s.seed("AAPL", 0, 9, "p1")

	res, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Require().Len(res.NewBars, 3)

	first := res.NewBars[0]
	s.Equal(int64(0), first.PeriodIndex)
	s.True(first.PeriodStart.Equal(day(0)))
	s.True(first.PeriodEnd.Equal(day(2)))
	// open of first day, close of last day, sum of volume
	s.True(first.Open.Equal(decimal.NewFromInt(99)), "open %s", first.Open)
	s.True(first.Close.Equal(decimal.NewFromInt(102)), "close %s", first.Close)
	s.True(first.High.Equal(decimal.NewFromInt(104)), "high %s", first.High)
	s.True(first.Low.Equal(decimal.NewFromInt(98)), "low %s", first.Low)
	s.Equal(int64(3000), first.Volume)

	wm, err := s.watermarks.Get(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Require().NotNil(wm)
	s.Equal(int64(2), wm.LastPeriodIndex)
	s.True(wm.LastPeriodEnd.Equal(day(8)))
}

func (s *EngineTestSuite) TestResampleIncompleteTailDefers() {
	s.seed("AAPL", 0, 9, "p1")
	_, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)

	// one more day: not enough for a new period
	s.seed("AAPL", 9, 1, "p2")
	res, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Empty(res.NewBars)

	wm, err := s.watermarks.Get(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Equal(int64(2), wm.LastPeriodIndex)
}

func (s *EngineTestSuite) TestResampleIncrementalAdvance() {
	s.seed("AAPL", 0, 9, "p1")
	_, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)

	s.seed("AAPL", 9, 3, "p2")
	res, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Require().Len(res.NewBars, 1)
	s.Equal(int64(3), res.NewBars[0].PeriodIndex)
	s.Len(s.bars.All("AAPL", 3), 4)
}

func (s *EngineTestSuite) TestResampleHealsCrashWindow() {
	s.seed("AAPL", 0, 9, "p1")

	// simulate a crash after bar upserts but before the watermark
	// advance: orphaned bars exist with no watermark
	series, err := s.series.Load(s.ctx, "AAPL")
	s.Require().NoError(err)
	orphans := []models.IntervalBar{
		models.AggregateBars("AAPL", 3, 0, series.Bars[0:3]),
		models.AggregateBars("AAPL", 3, 1, series.Bars[3:6]),
	}
	s.Require().NoError(s.bars.UpsertBars(s.ctx, orphans))

	res, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Len(res.NewBars, 3)

	all := s.bars.All("AAPL", 3)
	s.Require().Len(all, 3)
	for i, b := range all {
		s.Equal(int64(i), b.PeriodIndex)
	}
}

func (s *EngineTestSuite) TestResampleStaleWatermarkConflicts() {
	s.seed("AAPL", 0, 9, "p1")

	stale, err := s.watermarks.Get(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Require().Nil(stale)

	// another runner commits first
	_, err = s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)

	// the loser advances from its stale snapshot
	err = s.watermarks.CompareAndAdvance(s.ctx, stale, &models.Watermark{
		Symbol: "AAPL", Interval: 3, LastPeriodEnd: day(8), LastPeriodIndex: 2,
	})
	s.Require().Error(err)
	s.True(errors.Is(err, models.ErrConflict))
}

func (s *EngineTestSuite) TestResampleRefusesShiftedHistory() {
	s.seed("AAPL", 0, 9, "p1")
	_, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)

	// a date is inserted inside finalized history: period boundaries
	// for already-materialized indexes would shift
	series, err := s.series.Load(s.ctx, "AAPL")
	s.Require().NoError(err)
	inserted := rawBar("AAPL", day(0).Add(-24*time.Hour), 90, 100, time.Now())
	series.Bars = append([]models.RawBar{inserted}, series.Bars...)
	s.Require().NoError(s.series.Replace(s.ctx, series))

	_, err = s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().Error(err)
	s.True(errors.Is(err, models.ErrRewindRequired))
}

func (s *EngineTestSuite) TestGoldAggregateUpserts() {
	s.seed("AAPL", 0, 9, "p1")
	_, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)

	gold := NewGoldAggregator(s.bars, s.gold, metrics.Nop{}, []domservice.Strategy{stubStrategy{}}, 0)
	n, err := gold.Aggregate(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Equal(3, n)

	// rerun overwrites, never duplicates
	_, err = gold.Aggregate(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	signals, err := s.gold.LatestSignals(s.ctx, "AAPL", 100)
	s.Require().NoError(err)
	s.Len(signals, 3)
}

func (s *EngineTestSuite) TestGoldAggregatePublishesSignals() {
	s.seed("AAPL", 0, 9, "p1")
	_, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)

	pub := &captureSignalPublisher{}
	gold := NewGoldAggregator(s.bars, s.gold, metrics.Nop{}, []domservice.Strategy{stubStrategy{}}, 0)
	gold.SetPublisher(pub)

	n, err := gold.Aggregate(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Len(pub.got, n)
	s.Equal("AAPL", pub.got[0].Symbol)
}

func (s *EngineTestSuite) TestGoldAggregateSurvivesPublishFailure() {
	s.seed("AAPL", 0, 9, "p1")
	_, err := s.resampler.Resample(s.ctx, "AAPL", 3)
	s.Require().NoError(err)

	pub := &captureSignalPublisher{err: fmt.Errorf("broker down")}
	gold := NewGoldAggregator(s.bars, s.gold, metrics.Nop{}, []domservice.Strategy{stubStrategy{}}, 0)
	gold.SetPublisher(pub)

	// signals persist even when the outbound publish fails
	n, err := gold.Aggregate(s.ctx, "AAPL", 3)
	s.Require().NoError(err)
	s.Equal(3, n)
	signals, err := s.gold.LatestSignals(s.ctx, "AAPL", 100)
	s.Require().NoError(err)
	s.Len(signals, 3)
}

type captureSignalPublisher struct {
	got []models.Signal
	err error
}

func (c *captureSignalPublisher) PublishSignals(_ context.Context, signals []models.Signal) error {
	if c.err != nil {
		return c.err
	}
	c.got = append(c.got, signals...)
	return nil
}

// stubStrategy emits one buy per bar so counts are predictable.
type stubStrategy struct{}

func (stubStrategy) Name() string { return "stub" }

func (stubStrategy) Evaluate(bars []models.IntervalBar) []models.Signal {
	out := make([]models.Signal, 0, len(bars))
	for _, b := range bars {
		out = append(out, models.Signal{
			Symbol:   b.Symbol,
			Interval: b.Interval,
			Date:     b.PeriodEnd,
			Strategy: "stub",
			Side:     "buy",
			Detail:   fmt.Sprintf("period %d", b.PeriodIndex),
		})
	}
	return out
}
