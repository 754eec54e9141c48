package models

import "time"

// Watermark marks the last fully materialized period for one
// (symbol, interval) pair. All interval bars with PeriodIndex <=
// LastPeriodIndex exist and are final; none exist beyond it.
type Watermark struct {
	Symbol          string    `json:"symbol"`
	Interval        int       `json:"interval"`
	LastPeriodEnd   time.Time `json:"last_period_end"`
	LastPeriodIndex int64     `json:"last_period_index"`
}

// NextPeriodIndex is the index the next resample run materializes first.
func (w *Watermark) NextPeriodIndex() int64 {
	if w == nil {
		return 0
	}
	return w.LastPeriodIndex + 1
}

// Equal reports full equality. Used by compare-and-advance.
func (w *Watermark) Equal(o *Watermark) bool {
	if w == nil || o == nil {
		return w == nil && o == nil
	}
	return w.Symbol == o.Symbol &&
		w.Interval == o.Interval &&
		w.LastPeriodIndex == o.LastPeriodIndex &&
		w.LastPeriodEnd.Equal(o.LastPeriodEnd)
}
