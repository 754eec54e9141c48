package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"BarForge/internal/domain/models"
	internalrepo "BarForge/internal/repository"
	icache "BarForge/internal/service/cache"
	pkgcache "BarForge/pkg/cache"
)

type BarsQueryTestSuite struct {
	suite.Suite

	ctx        context.Context
	bars       *internalrepo.MemoryBarStore
	series     *internalrepo.MemorySeriesStore
	watermarks *internalrepo.MemoryWatermarkStore
	cache      *icache.RecentBars

	query *BarsQueryUseCase
}

func TestBarsQuerySuite(t *testing.T) {
	suite.Run(t, new(BarsQueryTestSuite))
}

func (s *BarsQueryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.bars = internalrepo.NewMemoryBarStore()
	s.series = internalrepo.NewMemorySeriesStore()
	s.watermarks = internalrepo.NewMemoryWatermarkStore()
	s.cache = icache.NewRecentBars(pkgcache.NewMemoryCache(), time.Minute)
	s.query = NewBarsQueryUseCase(s.bars, s.series, s.watermarks, s.cache)
}

func (s *BarsQueryTestSuite) storedBar(idx int64) models.IntervalBar {
	group := []models.RawBar{
		rawBar("AAPL", day(int(idx)*3), 100+float64(idx), 1000, time.Now()),
		rawBar("AAPL", day(int(idx)*3+1), 101+float64(idx), 1000, time.Now()),
		rawBar("AAPL", day(int(idx)*3+2), 102+float64(idx), 1000, time.Now()),
	}
	return models.AggregateBars("AAPL", 3, idx, group)
}

func (s *BarsQueryTestSuite) TestGetBarsValidation() {
	_, err := s.query.GetBars(s.ctx, GetBarsParams{Interval: 3})
	s.Error(err)

	_, err = s.query.GetBars(s.ctx, GetBarsParams{Symbol: "AAPL", Interval: 4})
	s.Error(err)
}

func (s *BarsQueryTestSuite) TestGetBarsFromStore() {
	bars := []models.IntervalBar{s.storedBar(0), s.storedBar(1), s.storedBar(2)}
	s.Require().NoError(s.bars.UpsertBars(s.ctx, bars))

	res, err := s.query.GetBars(s.ctx, GetBarsParams{Symbol: "AAPL", Interval: 3, Limit: 2})
	s.Require().NoError(err)

	s.Equal("store", res.Source)
	s.Equal(2, res.Count)
	s.Equal(int64(1), res.Bars[0].PeriodIndex)
	s.Equal(int64(2), res.Bars[1].PeriodIndex)
}

func (s *BarsQueryTestSuite) TestGetBarsServedFromCache() {
	window := []models.IntervalBar{s.storedBar(0), s.storedBar(1), s.storedBar(2)}
	s.Require().NoError(s.cache.Refresh(s.ctx, "AAPL", 3, window))

	res, err := s.query.GetBars(s.ctx, GetBarsParams{Symbol: "AAPL", Interval: 3, Limit: 2})
	s.Require().NoError(err)

	s.Equal("cache", res.Source)
	s.Equal(2, res.Count)
	// tail of the window, ascending
	s.Equal(int64(1), res.Bars[0].PeriodIndex)
	s.Equal(int64(2), res.Bars[1].PeriodIndex)
}

func (s *BarsQueryTestSuite) TestGetBarsShortCacheFallsThrough() {
	s.Require().NoError(s.cache.Refresh(s.ctx, "AAPL", 3, []models.IntervalBar{s.storedBar(2)}))
	stored := []models.IntervalBar{s.storedBar(0), s.storedBar(1), s.storedBar(2)}
	s.Require().NoError(s.bars.UpsertBars(s.ctx, stored))

	res, err := s.query.GetBars(s.ctx, GetBarsParams{Symbol: "AAPL", Interval: 3, Limit: 3})
	s.Require().NoError(err)

	s.Equal("store", res.Source)
	s.Equal(3, res.Count)
}

func (s *BarsQueryTestSuite) TestGetQuote() {
	s.Require().NoError(s.series.Replace(s.ctx, &models.CanonicalSeries{
		Symbol: "AAPL",
		Bars: []models.RawBar{
			rawBar("AAPL", day(0), 100, 1000, time.Now()),
			rawBar("AAPL", day(1), 105, 1100, time.Now()),
		},
	}))

	quote, err := s.query.GetQuote(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.True(quote.Bar.Date.Equal(day(1)))

	_, err = s.query.GetQuote(s.ctx, "MSFT")
	s.Error(err)
}

func (s *BarsQueryTestSuite) TestGetWatermarks() {
	s.Require().NoError(s.watermarks.Set(s.ctx, &models.Watermark{
		Symbol: "AAPL", Interval: 3, LastPeriodEnd: day(2), LastPeriodIndex: 0,
	}))

	wms, err := s.query.GetWatermarks(s.ctx, "AAPL", nil)
	s.Require().NoError(err)
	s.Require().Len(wms, 1)
	s.Equal(3, wms[0].Interval)

	_, err = s.query.GetWatermarks(s.ctx, "AAPL", []int{4})
	s.Error(err)
}

func (s *BarsQueryTestSuite) TestGetWatermarksRequiresSymbol() {
	_, err := s.query.GetWatermarks(s.ctx, "", nil)
	s.Error(err)
}
