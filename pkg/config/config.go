package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"BarForge/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Storage struct {
		// "clickhouse" for the durable tiers, "memory" for tests and
		// single-process runs
		Type string `yaml:"type"`
	} `yaml:"storage"`
	Pipeline struct {
		Intervals     []int         `yaml:"intervals"`
		Mode          string        `yaml:"mode"` // incremental | reset
		Workers       int           `yaml:"workers"`
		RecentBars    int           `yaml:"recent_bars"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		RetentionDays int           `yaml:"consolidation_retention_days"`
		Retry         struct {
			Max        int           `yaml:"max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
		} `yaml:"retry"`
	} `yaml:"pipeline"`
	Symbols []string `yaml:"symbols"`
	Kafka   struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		SignalsTopic string   `yaml:"signals_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Consumer     struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		RestURL        string        `yaml:"rest_url"`
		RestTimeout    time.Duration `yaml:"rest_timeout"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxRPS         int           `yaml:"max_rps"`
		BufferSize     int           `yaml:"buffer_size"`
	} `yaml:"feed"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("PIPELINE_MODE"); v != "" {
		c.Pipeline.Mode = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.Redis.Port = util.ParseIntDefault(v, c.Redis.Port)
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if len(c.Pipeline.Intervals) == 0 {
		c.Pipeline.Intervals = []int{3, 5, 8, 13, 21, 34}
	}
	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = "incremental"
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.RecentBars <= 0 {
		c.Pipeline.RecentBars = 34
	}
	if c.Pipeline.CacheTTL <= 0 {
		c.Pipeline.CacheTTL = 15 * time.Minute
	}
	if c.Pipeline.RetentionDays == 0 {
		c.Pipeline.RetentionDays = 7
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "clickhouse"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "barforge"
	}
	if c.Feed.RestURL == "" {
		c.Feed.RestURL = "https://finnhub.io/api/v1"
	}
	if c.Feed.RestTimeout <= 0 {
		c.Feed.RestTimeout = 30 * time.Second
	}
}

// Validate checks if the configuration is valid. It fails fast: a bad
// interval list or storage type never reaches the pipeline.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Type != "clickhouse" && c.Storage.Type != "memory" {
		return fmt.Errorf("storage.type must be 'clickhouse' or 'memory', got '%s'", c.Storage.Type)
	}
	if c.Pipeline.Mode != "incremental" && c.Pipeline.Mode != "reset" {
		return fmt.Errorf("pipeline.mode must be 'incremental' or 'reset', got '%s'", c.Pipeline.Mode)
	}
	prev := 0
	for _, iv := range c.Pipeline.Intervals {
		if iv <= 0 {
			return fmt.Errorf("pipeline.intervals must be positive, got %d", iv)
		}
		if iv <= prev {
			return fmt.Errorf("pipeline.intervals must be strictly ascending")
		}
		prev = iv
	}
	if c.Pipeline.RetentionDays < 0 {
		return fmt.Errorf("pipeline.consolidation_retention_days cannot be negative, got %d", c.Pipeline.RetentionDays)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols cannot be empty")
	}
	if c.Feed.Enabled && c.Feed.APIKey == "" {
		return fmt.Errorf("feed.api_key is required when feed is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
