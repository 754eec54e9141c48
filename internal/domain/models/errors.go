package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConflict means a watermark compare-and-advance lost a race.
	// The caller discards its computed bars and retries from a fresh read.
	ErrConflict = errors.New("watermark conflict")

	// ErrRewindRequired means finalized history changed at or before an
	// advanced watermark. The engine refuses to reprocess implicitly; an
	// operator must rewind the watermark first.
	ErrRewindRequired = errors.New("rewind required")
)

// RewindRequiredError carries the pair and earliest corrected date that
// triggered the refusal. Unwraps to ErrRewindRequired.
type RewindRequiredError struct {
	Symbol    string
	Interval  int
	Corrected time.Time
	Watermark time.Time
}

func (e *RewindRequiredError) Error() string {
	return fmt.Sprintf("rewind required for %s interval=%d: correction at %s is within finalized history (watermark %s)",
		e.Symbol, e.Interval,
		e.Corrected.Format("2006-01-02"), e.Watermark.Format("2006-01-02"))
}

func (e *RewindRequiredError) Unwrap() error { return ErrRewindRequired }
