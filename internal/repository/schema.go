package repository

// ClickHouse schema. ReplacingMergeTree keys give idempotent upserts:
// interval bars collapse on (symbol, interval_days, period_index), signals on
// (symbol, interval_days, date, strategy). Canonical series rows are
// versioned; readers pin the newest fully written version.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bf_raw_partitions (
		symbol       LowCardinality(String),
		partition_id String,
		date         Date,
		open         Decimal(18, 6),
		high         Decimal(18, 6),
		low          Decimal(18, 6),
		close        Decimal(18, 6),
		volume       Int64,
		ingested_at  DateTime64(9, 'UTC')
	) ENGINE = MergeTree()
	ORDER BY (symbol, partition_id, date)`,

	`CREATE TABLE IF NOT EXISTS bf_canonical_series (
		symbol  LowCardinality(String),
		version UInt64,
		date    Date,
		open    Decimal(18, 6),
		high    Decimal(18, 6),
		low     Decimal(18, 6),
		close   Decimal(18, 6),
		volume  Int64,
		ingested_at DateTime64(9, 'UTC')
	) ENGINE = MergeTree()
	ORDER BY (symbol, version, date)`,

	`CREATE TABLE IF NOT EXISTS bf_interval_bars (
		symbol        LowCardinality(String),
		interval_days UInt16,
		period_index  Int64,
		period_start  Date,
		period_end    Date,
		open          Decimal(18, 6),
		high          Decimal(18, 6),
		low           Decimal(18, 6),
		close         Decimal(18, 6),
		volume        Int64,
		updated_at    DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (symbol, interval_days, period_index)`,

	`CREATE TABLE IF NOT EXISTS bf_signals (
		symbol        LowCardinality(String),
		interval_days UInt16,
		date          Date,
		strategy      LowCardinality(String),
		side          LowCardinality(String),
		detail        String,
		updated_at    DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (symbol, interval_days, date, strategy)`,
}
