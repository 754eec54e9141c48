package di

import (
	"context"
	"fmt"
	"time"

	"BarForge/internal/analytics"
	"BarForge/internal/domain/repository"
	"BarForge/internal/handler/api"
	mid "BarForge/internal/middleware"
	internalrepo "BarForge/internal/repository"
	icache "BarForge/internal/service/cache"
	"BarForge/internal/service/feed"
	"BarForge/internal/usecase"
	pkgcache "BarForge/pkg/cache"
	pkgch "BarForge/pkg/clickhouse"
	"BarForge/pkg/config"
	pkgkafka "BarForge/pkg/kafka"
	applogger "BarForge/pkg/logger"
	"BarForge/pkg/metrics"
	pkgqueue "BarForge/pkg/queue"
	"BarForge/pkg/server"
)

// Stores bundles the storage tier behind one provider so the
// clickhouse/memory switch stays in one place.
type Stores struct {
	Partitions repository.PartitionStore
	Series     repository.SeriesStore
	Bars       repository.BarStore
	Watermarks repository.WatermarkStore
	Gold       repository.GoldStore
	Cache      repository.RecentBarCache

	CHClient *pkgch.Client        // nil in memory mode
	Redis    *pkgcache.RedisCache // nil when redis is disabled
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStores builds the storage tier from config.
func ProvideStores(cfg *config.Config) (*Stores, error) {
	s := &Stores{}

	switch cfg.Storage.Type {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SchemaStatements); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}

		s.CHClient = client
		s.Partitions = internalrepo.NewClickHousePartitionStore(client.DB())
		s.Series = internalrepo.NewClickHouseSeriesStore(client.DB())
		s.Bars = internalrepo.NewClickHouseBarStore(client.DB())
		s.Gold = internalrepo.NewClickHouseGoldStore(client.DB())
	case "memory":
		s.Partitions = internalrepo.NewMemoryPartitionStore()
		s.Series = internalrepo.NewMemorySeriesStore()
		s.Bars = internalrepo.NewMemoryBarStore()
		s.Gold = internalrepo.NewMemoryGoldStore()
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	if cfg.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Redis.Host),
			pkgcache.WithRedisPort(cfg.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
			pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.Redis = rc
		s.Watermarks = internalrepo.NewRedisWatermarkStore(rc.Client(), cfg.Redis.Prefix)
		// layered cache: hot window served from memory, redis behind it
		layered := pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemoryTTL(cfg.Pipeline.CacheTTL))
		s.Cache = icache.NewRecentBars(layered, cfg.Pipeline.CacheTTL)
	} else {
		s.Watermarks = internalrepo.NewMemoryWatermarkStore()
		s.Cache = icache.NewRecentBars(pkgcache.NewMemoryCache(), cfg.Pipeline.CacheTTL)
	}

	return s, nil
}

// ProvideConsolidator creates the bronze-to-canonical merge stage.
func ProvideConsolidator(s *Stores, m repository.Metrics, l *applogger.Logger) *usecase.Consolidator {
	c := usecase.NewConsolidator(s.Partitions, s.Series, m)
	c.SetLogger(l)
	return c
}

// ProvideResampler creates the canonical-to-interval-bars stage.
func ProvideResampler(cfg *config.Config, s *Stores, m repository.Metrics, l *applogger.Logger) *usecase.Resampler {
	r := usecase.NewResampler(s.Series, s.Bars, s.Watermarks, s.Cache, m, cfg.Pipeline.RecentBars)
	r.SetLogger(l)
	return r
}

// ProvideSignalProducer creates the Kafka producer for outbound gold
// signals. Returns nil when Kafka is disabled or no signals topic is set.
func ProvideSignalProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.SignalsTopic == "" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideGoldAggregator creates the signal stage with the stock
// strategy library. Signals fan out to Kafka when a producer is wired.
func ProvideGoldAggregator(cfg *config.Config, producer *pkgkafka.Producer, s *Stores, m repository.Metrics, l *applogger.Logger) *usecase.GoldAggregator {
	g := usecase.NewGoldAggregator(s.Bars, s.Gold, m, analytics.DefaultStrategies(), 0)
	g.SetLogger(l)
	if producer != nil {
		g.SetPublisher(internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic))
	}
	return g
}

// ProvidePipeline creates the pipeline runner.
func ProvidePipeline(
	cfg *config.Config,
	consolidator *usecase.Consolidator,
	resampler *usecase.Resampler,
	gold *usecase.GoldAggregator,
	s *Stores,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	p := usecase.NewPipeline(consolidator, resampler, gold, s.Watermarks, s.Bars, m, usecase.PipelineConfig{
		Intervals:  cfg.Pipeline.Intervals,
		Mode:       cfg.Pipeline.Mode,
		Workers:    cfg.Pipeline.Workers,
		RetryMax:   cfg.Pipeline.Retry.Max,
		BackoffMin: cfg.Pipeline.Retry.BackoffMin,
		BackoffMax: cfg.Pipeline.Retry.BackoffMax,
		Retention:  time.Duration(cfg.Pipeline.RetentionDays) * 24 * time.Hour,
	})
	p.SetLogger(l)
	return p
}

// ProvideIngestor creates the raw bar landing stage.
func ProvideIngestor(s *Stores, m repository.Metrics, l *applogger.Logger) *usecase.Ingestor {
	i := usecase.NewIngestor(s.Partitions, m)
	i.SetLogger(l)
	return i
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
// Returns nil when Kafka ingestion is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaBarsHandler registers the handler for the bars topic.
func ProvideKafkaBarsHandler(ingestor *usecase.Ingestor, m repository.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topic, ingestor, m)
}

// ProvideFeedCollector creates the live feed collector, or nil when the
// feed is disabled.
func ProvideFeedCollector(
	cfg *config.Config,
	ingestor *usecase.Ingestor,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.FeedCollector {
	if !cfg.Feed.Enabled {
		return nil
	}
	stream := feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
	stream.SetLogger(l)
	pipe := mid.NewIngestPipeline(ingestor, m,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithBufferSize(cfg.Feed.BufferSize),
	)
	return usecase.NewFeedCollector(stream, m, pipe)
}

// ProvideBackfiller creates the historical backfill use case, or nil
// when no vendor API key is configured.
func ProvideBackfiller(cfg *config.Config, ingestor *usecase.Ingestor, m repository.Metrics, l *applogger.Logger) *usecase.Backfiller {
	if cfg.Feed.APIKey == "" {
		return nil
	}
	history := feed.NewHistoryClient(cfg.Feed.APIKey, cfg.Feed.RestURL, cfg.Feed.RestTimeout)
	history.SetLogger(l)
	b := usecase.NewBackfiller(history, ingestor, m)
	b.SetLogger(l)
	return b
}

// ProvideBarsQuery creates the read-side use case.
func ProvideBarsQuery(s *Stores, l *applogger.Logger) *usecase.BarsQueryUseCase {
	q := usecase.NewBarsQueryUseCase(s.Bars, s.Series, s.Watermarks, s.Cache)
	q.SetLogger(l)
	return q
}

// ProvideHTTPHandler creates the Echo API handler.
func ProvideHTTPHandler(l *applogger.Logger, query *usecase.BarsQueryUseCase, pipeline *usecase.Pipeline, backfiller *usecase.Backfiller) *api.BarsEchoHandler {
	return api.NewBarsEchoHandler(l, query, pipeline, backfiller)
}

// ProvideJobQueue creates the Redis-backed job consumer for pipeline
// runs, or nil when Redis is disabled.
func ProvideJobQueue(cfg *config.Config, s *Stores, pipeline *usecase.Pipeline, l *applogger.Logger) *pkgqueue.RedisQueue {
	if s.Redis == nil {
		return nil
	}
	job := usecase.NewPipelineRunJob(pipeline, cfg.Symbols)
	return pkgqueue.NewRedisConsumer(l,
		&pkgqueue.QueueConfig{
			Workers:    2,
			QueueSize:  64,
			RetryLimit: 3,
			RetryDelay: time.Second,
		},
		s.Redis.Client(),
		[]pkgqueue.Job{job},
		pkgqueue.WithKeyPrefix(cfg.Redis.Prefix+":queue"),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	kh *usecase.KafkaBarsHandler,
	handler *api.BarsEchoHandler,
	jobs *pkgqueue.RedisQueue,
	s *Stores,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, producer, kh, s.CHClient, jobs)
	app.SetHTTPHandler(handler)
	return app
}
