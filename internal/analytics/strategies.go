package analytics

import (
	"fmt"

	"github.com/shopspring/decimal"

	"BarForge/internal/domain/models"
	domsvc "BarForge/internal/domain/service"
)

// SMACrossStrategy fires on fast/slow simple moving average crossovers:
// buy when the fast average crosses above the slow, sell on the cross
// back under.
type SMACrossStrategy struct {
	fast int
	slow int
}

func NewSMACrossStrategy(fast, slow int) *SMACrossStrategy {
	return &SMACrossStrategy{fast: fast, slow: slow}
}

func (s *SMACrossStrategy) Name() string {
	return fmt.Sprintf("sma_cross_%d_%d", s.fast, s.slow)
}

func (s *SMACrossStrategy) Evaluate(bars []models.IntervalBar) []models.Signal {
	if len(bars) < s.slow+1 {
		return nil
	}
	closes := closePrices(bars)
	fast, err := SMA(closes, s.fast)
	if err != nil {
		return nil
	}
	slow, err := SMA(closes, s.slow)
	if err != nil {
		return nil
	}
	var signals []models.Signal
	for i := s.slow; i < len(bars); i++ {
		prevAbove := fast[i-1].GreaterThan(slow[i-1])
		nowAbove := fast[i].GreaterThan(slow[i])
		if prevAbove == nowAbove {
			continue
		}
		side := "sell"
		if nowAbove {
			side = "buy"
		}
		signals = append(signals, strategySignal(bars[i], s.Name(), side,
			fmt.Sprintf("fast=%s slow=%s", fast[i].StringFixed(4), slow[i].StringFixed(4))))
	}
	return signals
}

// RSIStrategy fires on exits from the overbought and oversold zones:
// buy when RSI climbs back above the oversold line, sell when it drops
// back under the overbought line.
type RSIStrategy struct {
	period     int
	oversold   decimal.Decimal
	overbought decimal.Decimal
}

func NewRSIStrategy(period int, oversold, overbought float64) *RSIStrategy {
	return &RSIStrategy{
		period:     period,
		oversold:   decimal.NewFromFloat(oversold),
		overbought: decimal.NewFromFloat(overbought),
	}
}

func (s *RSIStrategy) Name() string {
	return fmt.Sprintf("rsi_%d", s.period)
}

func (s *RSIStrategy) Evaluate(bars []models.IntervalBar) []models.Signal {
	if len(bars) < s.period+2 {
		return nil
	}
	rsi, err := RSI(closePrices(bars), s.period)
	if err != nil {
		return nil
	}
	var signals []models.Signal
	for i := s.period + 1; i < len(bars); i++ {
		prev, cur := rsi[i-1], rsi[i]
		switch {
		case prev.LessThan(s.oversold) && cur.GreaterThanOrEqual(s.oversold):
			signals = append(signals, strategySignal(bars[i], s.Name(), "buy",
				fmt.Sprintf("rsi=%s", cur.StringFixed(2))))
		case prev.GreaterThan(s.overbought) && cur.LessThanOrEqual(s.overbought):
			signals = append(signals, strategySignal(bars[i], s.Name(), "sell",
				fmt.Sprintf("rsi=%s", cur.StringFixed(2))))
		}
	}
	return signals
}

// BollingerBreakoutStrategy fires when a close escapes the bands: buy
// above the upper band, sell below the lower.
type BollingerBreakoutStrategy struct {
	period int
	width  decimal.Decimal
}

func NewBollingerBreakoutStrategy(period int, width float64) *BollingerBreakoutStrategy {
	return &BollingerBreakoutStrategy{period: period, width: decimal.NewFromFloat(width)}
}

func (s *BollingerBreakoutStrategy) Name() string {
	return fmt.Sprintf("bollinger_%d", s.period)
}

func (s *BollingerBreakoutStrategy) Evaluate(bars []models.IntervalBar) []models.Signal {
	if len(bars) < s.period+1 {
		return nil
	}
	closes := closePrices(bars)
	bands, err := Bollinger(closes, s.period, s.width)
	if err != nil {
		return nil
	}
	var signals []models.Signal
	for i := s.period; i < len(bars); i++ {
		switch {
		case closes[i].GreaterThan(bands.Upper[i]):
			signals = append(signals, strategySignal(bars[i], s.Name(), "buy",
				fmt.Sprintf("close=%s upper=%s", closes[i].StringFixed(4), bands.Upper[i].StringFixed(4))))
		case closes[i].LessThan(bands.Lower[i]):
			signals = append(signals, strategySignal(bars[i], s.Name(), "sell",
				fmt.Sprintf("close=%s lower=%s", closes[i].StringFixed(4), bands.Lower[i].StringFixed(4))))
		}
	}
	return signals
}

// DefaultStrategies is the stock strategy library wired by DI.
func DefaultStrategies() []domsvc.Strategy {
	return []domsvc.Strategy{
		NewSMACrossStrategy(3, 8),
		NewRSIStrategy(5, 30, 70),
		NewBollingerBreakoutStrategy(5, 2.0),
	}
}

func closePrices(bars []models.IntervalBar) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func strategySignal(bar models.IntervalBar, strategy, side, detail string) models.Signal {
	return models.Signal{
		Symbol:   bar.Symbol,
		Interval: bar.Interval,
		Date:     bar.PeriodEnd,
		Strategy: strategy,
		Side:     side,
		Detail:   detail,
	}
}

var (
	_ domsvc.Strategy = (*SMACrossStrategy)(nil)
	_ domsvc.Strategy = (*RSIStrategy)(nil)
	_ domsvc.Strategy = (*BollingerBreakoutStrategy)(nil)
)
