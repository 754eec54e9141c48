package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
)

// ClickHousePartitionStore lands raw daily bars in bf_raw_partitions.
type ClickHousePartitionStore struct {
	db *sql.DB
}

func NewClickHousePartitionStore(db *sql.DB) *ClickHousePartitionStore {
	return &ClickHousePartitionStore{db: db}
}

func (s *ClickHousePartitionStore) Append(ctx context.Context, partitionID string, bars []models.RawBar) error {
	if len(bars) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, b := range bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Symbol, partitionID, b.Date,
				b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(),
				b.Volume, b.IngestedAt,
			)
		}
		q := "INSERT INTO bf_raw_partitions (symbol, partition_id, date, open, high, low, close, volume, ingested_at) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("append partition %s: %w", partitionID, err)
		}
	}
	return nil
}

func (s *ClickHousePartitionStore) ListPartitions(ctx context.Context, symbol string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT partition_id FROM bf_raw_partitions WHERE symbol = ? ORDER BY partition_id", symbol)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ClickHousePartitionStore) Load(ctx context.Context, symbol string, partitionIDs []string) ([]models.RawBar, error) {
	if len(partitionIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(partitionIDs)), ",")
	q := fmt.Sprintf(
		"SELECT symbol, date, open, high, low, close, volume, ingested_at FROM bf_raw_partitions WHERE symbol = ? AND partition_id IN (%s) ORDER BY date, ingested_at",
		placeholders)
	args := make([]interface{}, 0, len(partitionIDs)+1)
	args = append(args, symbol)
	for _, id := range partitionIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load partitions: %w", err)
	}
	defer rows.Close()
	return scanRawBars(rows)
}

func (s *ClickHousePartitionStore) Delete(ctx context.Context, symbol string, partitionIDs []string) error {
	if len(partitionIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(partitionIDs)), ",")
	q := fmt.Sprintf("ALTER TABLE bf_raw_partitions DELETE WHERE symbol = ? AND partition_id IN (%s)", placeholders)
	args := make([]interface{}, 0, len(partitionIDs)+1)
	args = append(args, symbol)
	for _, id := range partitionIDs {
		args = append(args, id)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("delete partitions: %w", err)
	}
	return nil
}

// ClickHouseSeriesStore keeps one versioned row set per symbol in
// bf_canonical_series. Replace writes all rows in a single INSERT under
// a fresh version; Load pins the newest version, so readers never see a
// half-written series.
type ClickHouseSeriesStore struct {
	db *sql.DB
}

func NewClickHouseSeriesStore(db *sql.DB) *ClickHouseSeriesStore {
	return &ClickHouseSeriesStore{db: db}
}

func (s *ClickHouseSeriesStore) Load(ctx context.Context, symbol string) (*models.CanonicalSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, volume, ingested_at
		FROM bf_canonical_series
		WHERE symbol = ?
		  AND version = (SELECT max(version) FROM bf_canonical_series WHERE symbol = ?)
		ORDER BY date`, symbol, symbol)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	bars, err := scanRawBars(rows)
	if err != nil {
		return nil, err
	}
	return &models.CanonicalSeries{Symbol: symbol, Bars: bars}, nil
}

func (s *ClickHouseSeriesStore) Replace(ctx context.Context, series *models.CanonicalSeries) error {
	version := uint64(time.Now().UnixNano())
	if len(series.Bars) > 0 {
		values := make([]string, 0, len(series.Bars))
		args := make([]interface{}, 0, len(series.Bars)*9)
		for _, b := range series.Bars {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				series.Symbol, version, b.Date,
				b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(),
				b.Volume, b.IngestedAt,
			)
		}
		q := "INSERT INTO bf_canonical_series (symbol, version, date, open, high, low, close, volume, ingested_at) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("replace series: %w", err)
		}
	}
	// superseded versions are garbage; failure here is harmless
	_, _ = s.db.ExecContext(ctx,
		"ALTER TABLE bf_canonical_series DELETE WHERE symbol = ? AND version < ?",
		series.Symbol, version)
	return nil
}

// ClickHouseBarStore persists resampled interval bars in bf_interval_bars.
type ClickHouseBarStore struct {
	db *sql.DB
}

func NewClickHouseBarStore(db *sql.DB) *ClickHouseBarStore {
	return &ClickHouseBarStore{db: db}
}

func (s *ClickHouseBarStore) UpsertBars(ctx context.Context, bars []models.IntervalBar) error {
	if len(bars) == 0 {
		return nil
	}
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*10)
	for _, b := range bars {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			b.Symbol, b.Interval, b.PeriodIndex, b.PeriodStart, b.PeriodEnd,
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(),
			b.Volume,
		)
	}
	q := "INSERT INTO bf_interval_bars (symbol, interval_days, period_index, period_start, period_end, open, high, low, close, volume) VALUES " + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert bars: %w", err)
	}
	return nil
}

func (s *ClickHouseBarStore) LatestN(ctx context.Context, symbol string, interval, n int) ([]models.IntervalBar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, interval_days, period_index, period_start, period_end, open, high, low, close, volume
		FROM bf_interval_bars FINAL
		WHERE symbol = ? AND interval_days = ?
		ORDER BY period_index DESC
		LIMIT ?`, symbol, interval, n)
	if err != nil {
		return nil, fmt.Errorf("latest bars: %w", err)
	}
	defer rows.Close()

	var bars []models.IntervalBar
	for rows.Next() {
		var b models.IntervalBar
		var open, high, low, closePx string
		if err := rows.Scan(&b.Symbol, &b.Interval, &b.PeriodIndex, &b.PeriodStart, &b.PeriodEnd,
			&open, &high, &low, &closePx, &b.Volume); err != nil {
			return nil, err
		}
		if b.Open, b.High, b.Low, b.Close, err = parsePrices(open, high, low, closePx); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// flip DESC fetch back to ascending period order
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func (s *ClickHouseBarStore) DeleteAfter(ctx context.Context, symbol string, interval int, after time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"ALTER TABLE bf_interval_bars DELETE WHERE symbol = ? AND interval_days = ? AND period_end > ?",
		symbol, interval, after)
	if err != nil {
		return fmt.Errorf("delete bars: %w", err)
	}
	return nil
}

// ClickHouseGoldStore persists strategy signals in bf_signals.
type ClickHouseGoldStore struct {
	db *sql.DB
}

func NewClickHouseGoldStore(db *sql.DB) *ClickHouseGoldStore {
	return &ClickHouseGoldStore{db: db}
}

func (s *ClickHouseGoldStore) UpsertSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	values := make([]string, 0, len(signals))
	args := make([]interface{}, 0, len(signals)*6)
	for _, sig := range signals {
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, sig.Symbol, sig.Interval, sig.Date, sig.Strategy, sig.Side, sig.Detail)
	}
	q := "INSERT INTO bf_signals (symbol, interval_days, date, strategy, side, detail) VALUES " + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert signals: %w", err)
	}
	return nil
}

func (s *ClickHouseGoldStore) LatestSignals(ctx context.Context, symbol string, limit int) ([]models.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, interval_days, date, strategy, side, detail
		FROM bf_signals FINAL
		WHERE symbol = ?
		ORDER BY date DESC, interval_days, strategy
		LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("latest signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var sig models.Signal
		if err := rows.Scan(&sig.Symbol, &sig.Interval, &sig.Date, &sig.Strategy, &sig.Side, &sig.Detail); err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

func scanRawBars(rows *sql.Rows) ([]models.RawBar, error) {
	var bars []models.RawBar
	for rows.Next() {
		var b models.RawBar
		var open, high, low, closePx string
		if err := rows.Scan(&b.Symbol, &b.Date, &open, &high, &low, &closePx, &b.Volume, &b.IngestedAt); err != nil {
			return nil, err
		}
		var err error
		if b.Open, b.High, b.Low, b.Close, err = parsePrices(open, high, low, closePx); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func parsePrices(open, high, low, closePx string) (o, h, l, c decimal.Decimal, err error) {
	if o, err = decimal.NewFromString(open); err != nil {
		return
	}
	if h, err = decimal.NewFromString(high); err != nil {
		return
	}
	if l, err = decimal.NewFromString(low); err != nil {
		return
	}
	c, err = decimal.NewFromString(closePx)
	return
}

var (
	_ domrepo.PartitionStore = (*ClickHousePartitionStore)(nil)
	_ domrepo.SeriesStore    = (*ClickHouseSeriesStore)(nil)
	_ domrepo.BarStore       = (*ClickHouseBarStore)(nil)
	_ domrepo.GoldStore      = (*ClickHouseGoldStore)(nil)
)
