package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"BarForge/internal/domain/models"
	internalrepo "BarForge/internal/repository"
	"BarForge/pkg/metrics"
)

type stubHistory struct {
	bars map[string][]models.RawBar
	err  error
}

func (h *stubHistory) DailyBars(_ context.Context, symbol string, _, _ time.Time) ([]models.RawBar, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.bars[symbol], nil
}

type BackfillTestSuite struct {
	suite.Suite

	ctx        context.Context
	partitions *internalrepo.MemoryPartitionStore
	history    *stubHistory
	backfiller *Backfiller
}

func TestBackfillSuite(t *testing.T) {
	suite.Run(t, new(BackfillTestSuite))
}

func (s *BackfillTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.partitions = internalrepo.NewMemoryPartitionStore()
	s.history = &stubHistory{bars: make(map[string][]models.RawBar)}
	ingestor := NewIngestor(s.partitions, metrics.Nop{})
	s.backfiller = NewBackfiller(s.history, ingestor, metrics.Nop{})
}

func (s *BackfillTestSuite) TestRunLandsFetchedBars() {
	s.history.bars["AAPL"] = []models.RawBar{
		rawBar("AAPL", day(0), 100, 1000, time.Time{}),
		rawBar("AAPL", day(1), 101, 1100, time.Time{}),
	}
	s.history.bars["MSFT"] = []models.RawBar{
		rawBar("MSFT", day(0), 300, 500, time.Time{}),
	}

	res, err := s.backfiller.Run(s.ctx, []string{"AAPL", "MSFT"}, day(0), day(1))
	s.Require().NoError(err)

	s.Equal(3, res.Total)
	s.Equal(2, res.Symbols["AAPL"])
	s.Equal(1, res.Symbols["MSFT"])

	ids, err := s.partitions.ListPartitions(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Require().Len(ids, 1)
	stored, err := s.partitions.Load(s.ctx, "AAPL", ids)
	s.Require().NoError(err)
	s.Len(stored, 2)
}

func (s *BackfillTestSuite) TestRunEmptySymbolIsZeroCount() {
	res, err := s.backfiller.Run(s.ctx, []string{"TSLA"}, day(0), day(1))
	s.Require().NoError(err)
	s.Equal(0, res.Symbols["TSLA"])
	s.Equal(0, res.Total)
}

func (s *BackfillTestSuite) TestRunFetchFailureAborts() {
	s.history.err = fmt.Errorf("vendor unavailable")
	_, err := s.backfiller.Run(s.ctx, []string{"AAPL"}, day(0), day(1))
	s.Error(err)
}

func (s *BackfillTestSuite) TestRunRejectsInvertedRange() {
	_, err := s.backfiller.Run(s.ctx, []string{"AAPL"}, day(1), day(0))
	s.Error(err)

	_, err = s.backfiller.Run(s.ctx, nil, day(0), day(1))
	s.Error(err)
}
