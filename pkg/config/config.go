// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Search, Analytics, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS headers; "*" allows any origin.
	CORSOrigins []string `yaml:"corsOrigins"`
	// RateLimit is the number of requests per minute allowed per client
	// address. Zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

// PostgresConfig holds PostgreSQL connection parameters. It is only used
// when the indexer reads its documents from a database.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	// DocumentQuery must return two text columns: document ID and raw text.
	DocumentQuery string `yaml:"documentQuery"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete   string `yaml:"indexComplete"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls where documents come from, where the snapshot is
// written, and how the build is parallelised.
type IndexerConfig struct {
	Source        string        `yaml:"source"`
	DocumentsDir  string        `yaml:"documentsDir"`
	DocumentExt   string        `yaml:"documentExt"`
	SnapshotPath  string        `yaml:"snapshotPath"`
	Language      string        `yaml:"language"`
	Workers       int           `yaml:"workers"`
	WatchDebounce time.Duration `yaml:"watchDebounce"`
}

// SearchConfig controls query defaults and execution limits.
type SearchConfig struct {
	DefaultPNorm  float64       `yaml:"defaultPNorm"`
	DefaultLimit  int           `yaml:"defaultLimit"`
	MaxResults    int           `yaml:"maxResults"`
	Workers       int           `yaml:"workers"`
	Timeout       time.Duration `yaml:"timeout"`
	WatchSnapshot bool          `yaml:"watchSnapshot"`
}

// AnalyticsConfig controls how search and build events are batched to
// Kafka and how often the standalone aggregator snapshots to PostgreSQL.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	PersistSnapshots bool          `yaml:"persistSnapshots"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Indexer.Source {
	case "dir", "postgres":
	default:
		return fmt.Errorf("indexer.source must be \"dir\" or \"postgres\", got %q", c.Indexer.Source)
	}
	if c.Indexer.SnapshotPath == "" {
		return fmt.Errorf("indexer.snapshotPath is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Search.DefaultPNorm <= 0 {
		return fmt.Errorf("search.defaultPNorm must be positive, got %v", c.Search.DefaultPNorm)
	}
	if c.Analytics.PersistSnapshots && c.Analytics.SnapshotInterval <= 0 {
		return fmt.Errorf("analytics.snapshotInterval must be positive when persisting snapshots")
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) is below search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development against a documents/ directory.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "stacksearch",
			User:            "stacksearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			DocumentQuery:   "SELECT id::text, concat_ws(E'\\n', title, tags, body) FROM documents ORDER BY id",
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "stacksearch-group",
			Topics: KafkaTopics{
				IndexComplete:   "index.complete",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			Source:        "dir",
			DocumentsDir:  "documents",
			DocumentExt:   ".txt",
			SnapshotPath:  "index.json",
			Language:      "english",
			Workers:       4,
			WatchDebounce: 2 * time.Second,
		},
		Search: SearchConfig{
			DefaultPNorm:  2.0,
			DefaultLimit:  50,
			MaxResults:    1000,
			Workers:       4,
			Timeout:       5 * time.Second,
			WatchSnapshot: true,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    2 * time.Second,
			PersistSnapshots: false,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SS_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("SS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SS_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("SS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SS_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("SS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SS_INDEXER_SOURCE"); v != "" {
		cfg.Indexer.Source = v
	}
	if v := os.Getenv("SS_INDEXER_DOCUMENTS_DIR"); v != "" {
		cfg.Indexer.DocumentsDir = v
	}
	if v := os.Getenv("SS_INDEXER_SNAPSHOT_PATH"); v != "" {
		cfg.Indexer.SnapshotPath = v
	}
	if v := os.Getenv("SS_SEARCH_DEFAULT_PNORM"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.DefaultPNorm = p
		}
	}
	if v := os.Getenv("SS_ANALYTICS_PERSIST"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.PersistSnapshots = enabled
		}
	}
	if v := os.Getenv("SS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
