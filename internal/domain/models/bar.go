package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawBar is one daily OHLCV record as delivered by ingestion.
// Before consolidation multiple raw partitions may carry the same
// (symbol, date); afterwards the canonical series holds exactly one.
type RawBar struct {
	Symbol     string          `json:"symbol"`
	Date       time.Time       `json:"date"` // trading day, UTC midnight
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     int64           `json:"volume"`
	IngestedAt time.Time       `json:"ingested_at"`
}

// Serialized returns a canonical textual form of the bar. Used as the
// final dedup tie-break so consolidation stays deterministic even when
// two records share date, ingestion time, and volume.
func (b RawBar) Serialized() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%d",
		b.Symbol,
		b.Date.UTC().Format("2006-01-02"),
		b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(),
		b.Volume,
		b.IngestedAt.UnixNano(),
	)
}

// SameContent reports whether two bars carry identical market data,
// ignoring ingestion time.
func (b RawBar) SameContent(o RawBar) bool {
	return b.Symbol == o.Symbol &&
		b.Date.Equal(o.Date) &&
		b.Open.Equal(o.Open) &&
		b.High.Equal(o.High) &&
		b.Low.Equal(o.Low) &&
		b.Close.Equal(o.Close) &&
		b.Volume == o.Volume
}

// CanonicalSeries is the deduplicated, date-ascending raw series for one
// symbol. Written only by the consolidator; resamplers read it.
type CanonicalSeries struct {
	Symbol string   `json:"symbol"`
	Bars   []RawBar `json:"bars"`
}

// Len returns the number of trading-day entries in the series.
func (s *CanonicalSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// IntervalBar is one resampled bar covering exactly Interval consecutive
// trading-day entries of the canonical series. PeriodIndex is the 0-based
// ordinal of the window counted from the first entry of the symbol's
// history; boundaries are index arithmetic, never calendar arithmetic.
type IntervalBar struct {
	Symbol      string          `json:"symbol"`
	Interval    int             `json:"interval"` // trading days per period
	PeriodIndex int64           `json:"period_index"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      int64           `json:"volume"`
}

// AggregateBars folds a full group of raw bars into one interval bar.
// The caller guarantees len(group) == interval and ascending date order.
func AggregateBars(symbol string, interval int, periodIndex int64, group []RawBar) IntervalBar {
	out := IntervalBar{
		Symbol:      symbol,
		Interval:    interval,
		PeriodIndex: periodIndex,
		PeriodStart: group[0].Date,
		PeriodEnd:   group[len(group)-1].Date,
		Open:        group[0].Open,
		High:        group[0].High,
		Low:         group[0].Low,
		Close:       group[len(group)-1].Close,
	}
	for _, b := range group {
		if b.High.GreaterThan(out.High) {
			out.High = b.High
		}
		if b.Low.LessThan(out.Low) {
			out.Low = b.Low
		}
		out.Volume += b.Volume
	}
	return out
}

// Signal is a gold-tier output: one strategy verdict for one resampled bar.
type Signal struct {
	Symbol   string    `json:"symbol"`
	Interval int       `json:"interval"`
	Date     time.Time `json:"date"` // period end of the bar that fired
	Strategy string    `json:"strategy"`
	Side     string    `json:"side"` // "buy" | "sell"
	Detail   string    `json:"detail,omitempty"`
}
