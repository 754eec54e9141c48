package analytics

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// SMA returns the simple moving average series. Entry i covers prices
// [i-period+1, i]; the first period-1 entries are zero.
func SMA(prices []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid period %d", period)
	}
	if len(prices) < period {
		return nil, fmt.Errorf("need %d prices, have %d", period, len(prices))
	}
	out := make([]decimal.Decimal, len(prices))
	p := decimal.NewFromInt(int64(period))
	var sum decimal.Decimal
	for i, price := range prices {
		sum = sum.Add(price)
		if i >= period {
			sum = sum.Sub(prices[i-period])
		}
		if i >= period-1 {
			out[i] = sum.Div(p)
		}
	}
	return out, nil
}

// EMA returns the exponential moving average series with
// alpha = 2/(period+1), seeded from the first price.
func EMA(prices []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid period %d", period)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no prices")
	}
	alpha := two.Div(decimal.NewFromInt(int64(period) + 1))
	oneMinus := decimal.NewFromInt(1).Sub(alpha)
	out := make([]decimal.Decimal, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = prices[i].Mul(alpha).Add(out[i-1].Mul(oneMinus))
	}
	return out, nil
}

// RSI returns the relative strength index series using Wilder smoothing.
// Entries before index period are zero.
func RSI(prices []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid period %d", period)
	}
	if len(prices) < period+1 {
		return nil, fmt.Errorf("need %d prices, have %d", period+1, len(prices))
	}
	p := decimal.NewFromInt(int64(period))
	pMinus1 := decimal.NewFromInt(int64(period) - 1)

	var avgGain, avgLoss decimal.Decimal
	for i := 1; i <= period; i++ {
		change := prices[i].Sub(prices[i-1])
		if change.IsPositive() {
			avgGain = avgGain.Add(change)
		} else {
			avgLoss = avgLoss.Add(change.Abs())
		}
	}
	avgGain = avgGain.Div(p)
	avgLoss = avgLoss.Div(p)

	out := make([]decimal.Decimal, len(prices))
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(prices); i++ {
		change := prices[i].Sub(prices[i-1])
		gain, loss := decimal.Zero, decimal.Zero
		if change.IsPositive() {
			gain = change
		} else {
			loss = change.Abs()
		}
		avgGain = avgGain.Mul(pMinus1).Add(gain).Div(p)
		avgLoss = avgLoss.Mul(pMinus1).Add(loss).Div(p)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss decimal.Decimal) decimal.Decimal {
	if avgLoss.IsZero() {
		return hundred
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// MACDResult holds the three MACD series, index-aligned with the input.
type MACDResult struct {
	MACD      []decimal.Decimal
	Signal    []decimal.Decimal
	Histogram []decimal.Decimal
}

// MACD computes moving average convergence divergence with the usual
// fast/slow/signal EMA periods (12/26/9 by convention).
func MACD(prices []decimal.Decimal, fast, slow, signal int) (*MACDResult, error) {
	if fast >= slow {
		return nil, fmt.Errorf("fast period %d must be below slow %d", fast, slow)
	}
	fastEMA, err := EMA(prices, fast)
	if err != nil {
		return nil, err
	}
	slowEMA, err := EMA(prices, slow)
	if err != nil {
		return nil, err
	}
	macd := make([]decimal.Decimal, len(prices))
	for i := range prices {
		macd[i] = fastEMA[i].Sub(slowEMA[i])
	}
	sig, err := EMA(macd, signal)
	if err != nil {
		return nil, err
	}
	hist := make([]decimal.Decimal, len(prices))
	for i := range prices {
		hist[i] = macd[i].Sub(sig[i])
	}
	return &MACDResult{MACD: macd, Signal: sig, Histogram: hist}, nil
}

// BollingerResult holds the band series, index-aligned with the input.
// Entries before the first full window are zero.
type BollingerResult struct {
	Middle []decimal.Decimal
	Upper  []decimal.Decimal
	Lower  []decimal.Decimal
}

// Bollinger computes bands as middle +/- width population standard
// deviations over the window (20 and 2.0 by convention).
func Bollinger(prices []decimal.Decimal, period int, width decimal.Decimal) (*BollingerResult, error) {
	middle, err := SMA(prices, period)
	if err != nil {
		return nil, err
	}
	p := decimal.NewFromInt(int64(period))
	res := &BollingerResult{
		Middle: middle,
		Upper:  make([]decimal.Decimal, len(prices)),
		Lower:  make([]decimal.Decimal, len(prices)),
	}
	for i := period - 1; i < len(prices); i++ {
		var variance decimal.Decimal
		for j := i - period + 1; j <= i; j++ {
			d := prices[j].Sub(middle[i])
			variance = variance.Add(d.Mul(d))
		}
		std := sqrt(variance.Div(p))
		band := std.Mul(width)
		res.Upper[i] = middle[i].Add(band)
		res.Lower[i] = middle[i].Sub(band)
	}
	return res, nil
}

// ATR returns the average true range series using Wilder smoothing.
// Entries before index period are zero.
func ATR(highs, lows, closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	n := len(closes)
	if len(highs) != n || len(lows) != n {
		return nil, fmt.Errorf("series length mismatch")
	}
	if period <= 0 {
		return nil, fmt.Errorf("invalid period %d", period)
	}
	if n < period+1 {
		return nil, fmt.Errorf("need %d bars, have %d", period+1, n)
	}
	tr := make([]decimal.Decimal, n)
	for i := 1; i < n; i++ {
		hl := highs[i].Sub(lows[i])
		hc := highs[i].Sub(closes[i-1]).Abs()
		lc := lows[i].Sub(closes[i-1]).Abs()
		tr[i] = decimal.Max(hl, hc, lc)
	}
	p := decimal.NewFromInt(int64(period))
	pMinus1 := decimal.NewFromInt(int64(period) - 1)
	out := make([]decimal.Decimal, n)
	var sum decimal.Decimal
	for i := 1; i <= period; i++ {
		sum = sum.Add(tr[i])
	}
	out[period] = sum.Div(p)
	for i := period + 1; i < n; i++ {
		out[i] = out[i-1].Mul(pMinus1).Add(tr[i]).Div(p)
	}
	return out, nil
}

// sqrt computes a decimal square root by Newton iteration, seeded from
// the float64 approximation. Plenty for band widths.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	f, _ := d.Float64()
	x := decimal.NewFromFloat(math.Sqrt(f))
	if x.IsZero() {
		return decimal.Zero
	}
	for i := 0; i < 4; i++ {
		x = x.Add(d.Div(x)).Div(two)
	}
	return x
}
