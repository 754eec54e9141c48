package service

import "BarForge/internal/domain/models"

// Strategy evaluates a resampled series and emits signals for the most
// recent bar. Implementations are pure functions over the input slice;
// persistence belongs to the gold aggregator.
type Strategy interface {
	Name() string
	Evaluate(bars []models.IntervalBar) []models.Signal
}
