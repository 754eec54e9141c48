package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	pkgcache "BarForge/pkg/cache"
)

// ErrMiss is returned by Get when the window is absent or its TTL has
// lapsed. Callers treat it as "fall back to the bar store", never as a
// failure.
var ErrMiss = errors.New("recent bars: cache miss")

// RecentBars keeps the last N interval bars per (symbol, interval) in a
// TTL window. It is a read accelerator only; the bar store stays
// authoritative and the pipeline never blocks on it.
type RecentBars struct {
	cache pkgcache.Service
	ttl   time.Duration
}

func NewRecentBars(cache pkgcache.Service, ttl time.Duration) *RecentBars {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RecentBars{cache: cache, ttl: ttl}
}

func key(symbol string, interval int) string {
	return pkgcache.GenerateKeyWithParams("bars", symbol, interval)
}

// Refresh replaces the cached window and restarts its TTL. The window
// is stored as a JSON string so both cache backends round-trip it.
func (r *RecentBars) Refresh(ctx context.Context, symbol string, interval int, bars []models.IntervalBar) error {
	payload, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("encode window %s/%d: %w", symbol, interval, err)
	}
	if err := r.cache.Set(ctx, key(symbol, interval), string(payload), r.ttl); err != nil {
		return fmt.Errorf("refresh %s/%d: %w", symbol, interval, err)
	}
	return nil
}

// Get returns the cached window in ascending period order, or ErrMiss
// when absent or expired.
func (r *RecentBars) Get(ctx context.Context, symbol string, interval int) ([]models.IntervalBar, error) {
	var payload string
	err := r.cache.Get(ctx, key(symbol, interval), &payload)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", symbol, interval, err)
	}
	var bars []models.IntervalBar
	if err := json.Unmarshal([]byte(payload), &bars); err != nil {
		return nil, fmt.Errorf("decode window %s/%d: %w", symbol, interval, err)
	}
	return bars, nil
}

var _ domrepo.RecentBarCache = (*RecentBars)(nil)
