package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"BarForge/internal/domain/models"
	pkgcache "BarForge/pkg/cache"
)

func windowBar(idx int64, close float64) models.IntervalBar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := decimal.NewFromFloat(close)
	return models.IntervalBar{
		Symbol:      "AAPL",
		Interval:    3,
		PeriodIndex: idx,
		PeriodStart: start.AddDate(0, 0, int(idx)*7),
		PeriodEnd:   start.AddDate(0, 0, int(idx)*7+4),
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		Volume:      3000,
	}
}

func TestGetMissesWhenEmpty(t *testing.T) {
	rb := NewRecentBars(pkgcache.NewMemoryCache(), time.Minute)

	_, err := rb.Get(context.Background(), "AAPL", 3)
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestRefreshThenGet(t *testing.T) {
	ctx := context.Background()
	rb := NewRecentBars(pkgcache.NewMemoryCache(), time.Minute)

	window := []models.IntervalBar{windowBar(0, 100), windowBar(1, 101)}
	if err := rb.Refresh(ctx, "AAPL", 3, window); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, err := rb.Get(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(got))
	}
	if got[0].PeriodIndex != 0 || got[1].PeriodIndex != 1 {
		t.Fatalf("window out of order: %+v", got)
	}
	if !got[1].Close.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("close did not round-trip: %s", got[1].Close)
	}
}

func TestRefreshReplacesWindow(t *testing.T) {
	ctx := context.Background()
	rb := NewRecentBars(pkgcache.NewMemoryCache(), time.Minute)

	if err := rb.Refresh(ctx, "AAPL", 3, []models.IntervalBar{windowBar(0, 100)}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := rb.Refresh(ctx, "AAPL", 3, []models.IntervalBar{windowBar(0, 100), windowBar(1, 105)}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, err := rb.Get(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected replaced window of 2, got %d", len(got))
	}
}

func TestWindowExpires(t *testing.T) {
	ctx := context.Background()
	rb := NewRecentBars(pkgcache.NewMemoryCache(), 10*time.Millisecond)

	if err := rb.Refresh(ctx, "AAPL", 3, []models.IntervalBar{windowBar(0, 100)}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	_, err := rb.Get(ctx, "AAPL", 3)
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestPairsAreIsolated(t *testing.T) {
	ctx := context.Background()
	rb := NewRecentBars(pkgcache.NewMemoryCache(), time.Minute)

	if err := rb.Refresh(ctx, "AAPL", 3, []models.IntervalBar{windowBar(0, 100)}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, err := rb.Get(ctx, "AAPL", 5); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss for other interval, got %v", err)
	}
	if _, err := rb.Get(ctx, "MSFT", 3); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss for other symbol, got %v", err)
	}
}
