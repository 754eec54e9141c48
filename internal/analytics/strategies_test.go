package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BarForge/internal/domain/models"
)

func barsFromCloses(closes ...float64) []models.IntervalBar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.IntervalBar, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		out[i] = models.IntervalBar{
			Symbol:      "AAPL",
			Interval:    3,
			PeriodIndex: int64(i),
			PeriodStart: start.AddDate(0, 0, i*7),
			PeriodEnd:   start.AddDate(0, 0, i*7+4),
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      1000,
		}
	}
	return out
}

func TestSMACrossDetectsBothCrossings(t *testing.T) {
	s := NewSMACrossStrategy(2, 3)
	bars := barsFromCloses(10, 9, 8, 7, 8, 9, 10, 11, 10, 8)

	signals := s.Evaluate(bars)
	require.Len(t, signals, 2)

	assert.Equal(t, "buy", signals[0].Side)
	assert.True(t, signals[0].Date.Equal(bars[5].PeriodEnd))
	assert.Equal(t, "sell", signals[1].Side)
	assert.True(t, signals[1].Date.Equal(bars[9].PeriodEnd))
	assert.Equal(t, "sma_cross_2_3", signals[0].Strategy)
}

func TestSMACrossNoSignalOnMonotonicSeries(t *testing.T) {
	s := NewSMACrossStrategy(2, 3)
	assert.Empty(t, s.Evaluate(barsFromCloses(1, 2, 3, 4, 5, 6)))
}

func TestSMACrossTooFewBars(t *testing.T) {
	s := NewSMACrossStrategy(2, 3)
	assert.Nil(t, s.Evaluate(barsFromCloses(1, 2, 3)))
}

func TestRSIOversoldExit(t *testing.T) {
	s := NewRSIStrategy(2, 30, 70)
	// two down moves pin RSI at 0, the bounce lifts it to 50
	signals := s.Evaluate(barsFromCloses(10, 9, 8, 9))

	require.Len(t, signals, 1)
	assert.Equal(t, "buy", signals[0].Side)
	assert.Equal(t, "rsi_2", signals[0].Strategy)
}

func TestRSIOverboughtExit(t *testing.T) {
	s := NewRSIStrategy(2, 30, 70)
	signals := s.Evaluate(barsFromCloses(10, 11, 12, 11))

	require.Len(t, signals, 1)
	assert.Equal(t, "sell", signals[0].Side)
}

func TestRSIQuietWhileTrending(t *testing.T) {
	// a steady uptrend pins RSI at 100: overbought, but never exiting
	s := NewRSIStrategy(2, 30, 70)
	assert.Empty(t, s.Evaluate(barsFromCloses(10, 11, 12, 13, 14)))
}

func TestBollingerBreakoutAbove(t *testing.T) {
	s := NewBollingerBreakoutStrategy(3, 1.0)
	signals := s.Evaluate(barsFromCloses(10, 10, 10, 10, 20))

	require.Len(t, signals, 1)
	assert.Equal(t, "buy", signals[0].Side)
	assert.Equal(t, "bollinger_3", signals[0].Strategy)
	assert.True(t, signals[0].Date.Equal(barsFromCloses(10, 10, 10, 10, 20)[4].PeriodEnd))
}

func TestBollingerBreakoutBelow(t *testing.T) {
	s := NewBollingerBreakoutStrategy(3, 1.0)
	signals := s.Evaluate(barsFromCloses(10, 10, 10, 10, 2))

	require.Len(t, signals, 1)
	assert.Equal(t, "sell", signals[0].Side)
}

func TestBollingerFlatSeriesStaysInside(t *testing.T) {
	s := NewBollingerBreakoutStrategy(3, 1.0)
	assert.Empty(t, s.Evaluate(barsFromCloses(10, 10, 10, 10, 10)))
}

func TestDefaultStrategies(t *testing.T) {
	strategies := DefaultStrategies()
	require.Len(t, strategies, 3)

	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"sma_cross_3_8", "rsi_5", "bollinger_5"}, names)
}
