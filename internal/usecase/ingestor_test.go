package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"BarForge/internal/domain/models"
	internalrepo "BarForge/internal/repository"
	"BarForge/pkg/metrics"
)

type IngestorTestSuite struct {
	suite.Suite

	ctx        context.Context
	partitions *internalrepo.MemoryPartitionStore
	ingestor   *Ingestor
}

func TestIngestorSuite(t *testing.T) {
	suite.Run(t, new(IngestorTestSuite))
}

func (s *IngestorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.partitions = internalrepo.NewMemoryPartitionStore()
	s.ingestor = NewIngestor(s.partitions, metrics.Nop{})
	s.ingestor.now = func() time.Time {
		return time.Date(2024, 2, 15, 9, 30, 0, 0, time.UTC)
	}
}

func (s *IngestorTestSuite) TestIngestLandsInDailyPartition() {
	in := []models.RawBar{
		rawBar("AAPL", day(0), 100, 1000, time.Time{}),
		rawBar("AAPL", day(1), 101, 1100, time.Time{}),
	}
	s.Require().NoError(s.ingestor.Ingest(s.ctx, in))

	ids, err := s.partitions.ListPartitions(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Equal([]string{"2024-02-15"}, ids)

	stored, err := s.partitions.Load(s.ctx, "AAPL", ids)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	// a zero IngestedAt is stamped with the ingestion clock
	s.True(stored[0].IngestedAt.Equal(time.Date(2024, 2, 15, 9, 30, 0, 0, time.UTC)))
}

func (s *IngestorTestSuite) TestIngestKeepsExplicitIngestedAt() {
	stamped := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	in := []models.RawBar{rawBar("AAPL", day(0), 100, 1000, stamped)}
	s.Require().NoError(s.ingestor.Ingest(s.ctx, in))

	stored, err := s.partitions.Load(s.ctx, "AAPL", []string{"2024-02-15"})
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.True(stored[0].IngestedAt.Equal(stamped))
}

func (s *IngestorTestSuite) TestIngestNormalizesDateToMidnight() {
	b := rawBar("AAPL", day(0).Add(14*time.Hour), 100, 1000, time.Time{})
	s.Require().NoError(s.ingestor.Ingest(s.ctx, []models.RawBar{b}))

	stored, err := s.partitions.Load(s.ctx, "AAPL", []string{"2024-02-15"})
	s.Require().NoError(err)
	s.True(stored[0].Date.Equal(day(0)))
}

func (s *IngestorTestSuite) TestIngestRejectsWholeBatch() {
	bad := rawBar("AAPL", day(1), 100, 1000, time.Time{})
	bad.High = decimal.NewFromInt(90) // under the low
	in := []models.RawBar{
		rawBar("AAPL", day(0), 100, 1000, time.Time{}),
		bad,
	}
	err := s.ingestor.Ingest(s.ctx, in)
	s.Require().Error(err)

	ids, err := s.partitions.ListPartitions(s.ctx, "AAPL")
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *IngestorTestSuite) TestIngestValidation() {
	cases := []struct {
		name   string
		mutate func(*models.RawBar)
	}{
		{"missing symbol", func(b *models.RawBar) { b.Symbol = "" }},
		{"missing date", func(b *models.RawBar) { b.Date = time.Time{} }},
		{"negative volume", func(b *models.RawBar) { b.Volume = -1 }},
		{"high below low", func(b *models.RawBar) { b.High = b.Low.Sub(decimal.NewFromInt(1)) }},
		{"open above high", func(b *models.RawBar) { b.Open = b.High.Add(decimal.NewFromInt(1)) }},
		{"close below low", func(b *models.RawBar) { b.Close = b.Low.Sub(decimal.NewFromInt(1)) }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			b := rawBar("AAPL", day(0), 100, 1000, time.Time{})
			tc.mutate(&b)
			s.Error(s.ingestor.Ingest(s.ctx, []models.RawBar{b}))
		})
	}
}

func (s *IngestorTestSuite) TestIngestEmptyBatchIsNoop() {
	s.NoError(s.ingestor.Ingest(s.ctx, nil))
}
