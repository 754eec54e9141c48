package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestSMA(t *testing.T) {
	out, err := SMA(dec(1, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.True(t, out[0].IsZero())
	assert.True(t, out[1].IsZero())
	assert.Equal(t, "2", out[2].String())
	assert.Equal(t, "3", out[3].String())
	assert.Equal(t, "4", out[4].String())
}

func TestSMATooFewPrices(t *testing.T) {
	_, err := SMA(dec(1, 2), 3)
	assert.Error(t, err)

	_, err = SMA(dec(1, 2, 3), 0)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	// period 3, alpha = 1/2, seeded from the first price
	out, err := EMA(dec(2, 4, 6), 3)
	require.NoError(t, err)

	assert.Equal(t, "2", out[0].String())
	assert.Equal(t, "3", out[1].String())
	assert.Equal(t, "4.5", out[2].String())
}

func TestRSIWilderSmoothing(t *testing.T) {
	// period 2: seed avgGain=0.5 avgLoss=0.5 -> RSI 50, then the +2 move
	// smooths to avgGain=1.25 avgLoss=0.25 -> RSI 100-100/6
	out, err := RSI(dec(10, 11, 10, 12), 2)
	require.NoError(t, err)

	assert.True(t, out[0].IsZero())
	assert.True(t, out[1].IsZero())
	assert.Equal(t, "50.00", out[2].StringFixed(2))
	assert.Equal(t, "83.33", out[3].StringFixed(2))
}

func TestRSIExtremes(t *testing.T) {
	up, err := RSI(dec(1, 2, 3, 4, 5, 6, 7), 5)
	require.NoError(t, err)
	assert.Equal(t, "100", up[6].String())

	down, err := RSI(dec(7, 6, 5, 4, 3, 2, 1), 5)
	require.NoError(t, err)
	assert.True(t, down[6].IsZero())
}

func TestRSITooFewPrices(t *testing.T) {
	_, err := RSI(dec(1, 2), 2)
	assert.Error(t, err)
}

func TestMACDFlatSeriesIsZero(t *testing.T) {
	res, err := MACD(dec(5, 5, 5, 5, 5, 5), 2, 4, 3)
	require.NoError(t, err)
	for i := range res.MACD {
		assert.True(t, res.MACD[i].IsZero())
		assert.True(t, res.Signal[i].IsZero())
		assert.True(t, res.Histogram[i].IsZero())
	}
}

func TestMACDRejectsInvertedPeriods(t *testing.T) {
	_, err := MACD(dec(1, 2, 3), 4, 2, 3)
	assert.Error(t, err)
}

func TestBollingerFlatWindowCollapses(t *testing.T) {
	res, err := Bollinger(dec(10, 10, 10), 3, decimal.NewFromInt(2))
	require.NoError(t, err)

	assert.Equal(t, "10", res.Middle[2].String())
	assert.Equal(t, "10", res.Upper[2].String())
	assert.Equal(t, "10", res.Lower[2].String())
}

func TestBollingerBandWidth(t *testing.T) {
	// window 1,2,3: middle 2, population std sqrt(2/3)
	res, err := Bollinger(dec(1, 2, 3), 3, decimal.NewFromInt(1))
	require.NoError(t, err)

	assert.Equal(t, "2", res.Middle[2].String())
	assert.Equal(t, "2.8165", res.Upper[2].StringFixed(4))
	assert.Equal(t, "1.1835", res.Lower[2].StringFixed(4))
}

func TestATR(t *testing.T) {
	highs := dec(10, 12, 11, 13)
	lows := dec(9, 10, 10, 11)
	closes := dec(9.5, 11, 10.5, 12)

	out, err := ATR(highs, lows, closes, 2)
	require.NoError(t, err)

	// tr: 2.5, 1, 2.5; seed (2.5+1)/2 then Wilder (1.75+2.5)/2
	assert.True(t, out[1].IsZero())
	assert.Equal(t, "1.75", out[2].String())
	assert.Equal(t, "2.125", out[3].String())
}

func TestATRLengthMismatch(t *testing.T) {
	_, err := ATR(dec(1, 2), dec(1), dec(1, 2), 1)
	assert.Error(t, err)
}
