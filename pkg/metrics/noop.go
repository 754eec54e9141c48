package metrics

// Nop discards every observation. Used by tests and tools that do not
// expose a scrape endpoint.
type Nop struct{}

func (Nop) RecordBarsMaterialized(string, int, int) {}
func (Nop) RecordConsolidation(string, int)         {}
func (Nop) RecordError(string)                      {}
func (Nop) RecordConflict(string, int)              {}
func (Nop) RecordLatency(string, float64)           {}
func (Nop) RecordWatermarkIndex(string, int, int64) {}
