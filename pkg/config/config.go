// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Classifier, Postgres, Kafka, Redis, etc.).
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
	Server     ServerConfig     `yaml:"server"`
	Index      IndexConfig      `yaml:"index"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the classify service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig locates the binary index files. Basename is the common prefix
// of the .lex, .pos and .dlen files; DocLengthPath overrides the .dlen path.
type IndexConfig struct {
	Basename      string `yaml:"basename"`
	DocLengthPath string `yaml:"docLengthPath"`
	DocLenWorkers int    `yaml:"docLenWorkers"`
}

// DocLengths returns the document-length table path for the index.
func (c IndexConfig) DocLengths() string {
	if c.DocLengthPath != "" {
		return c.DocLengthPath
	}
	return c.Basename + ".dlen"
}

// ClassifierConfig controls retrieval and kNN voting. A nil ModelParam
// means the model's own default.
type ClassifierConfig struct {
	K           int      `yaml:"k"`
	Model       string   `yaml:"model"`
	ModelParam  *float64 `yaml:"modelParam"`
	Workers     int      `yaml:"workers"`
	ResultLimit int      `yaml:"resultLimit"`
	LabelsPath  string   `yaml:"labelsPath"`
}

// Param returns the configured model parameter, or def when none was set.
func (c ClassifierConfig) Param(def float64) float64 {
	if c.ModelParam == nil {
		return def
	}
	return *c.ModelParam
}

// PostgresConfig holds PostgreSQL connection parameters for the prediction
// store. The store is disabled when Enabled is false.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. Predictions receives
// prediction events; Queries, when set, is a topic of query documents the
// classify service consumes.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	Predictions   string   `yaml:"predictionsTopic"`
	Queries       string   `yaml:"queriesTopic"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	BatchSize     int      `yaml:"batchSize"`
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
// overrides. It returns a Config populated with defaults for any missing
// values.
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

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Classifier.K < 1 {
		return fmt.Errorf("classifier.k must be positive, got %d", c.Classifier.K)
	}
	if c.Classifier.Workers < 1 {
		return fmt.Errorf("classifier.workers must be positive, got %d", c.Classifier.Workers)
	}
	if c.Classifier.ResultLimit < 0 {
		return fmt.Errorf("classifier.resultLimit must not be negative, got %d", c.Classifier.ResultLimit)
	}
	return nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			DocLenWorkers: 4,
		},
		Classifier: ClassifierConfig{
			K:           5,
			Model:       "tfidf",
			Workers:     4,
			ResultLimit: 1000,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "simir",
			User:            "simir",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			Predictions:   "knn-predictions",
			ConsumerGroup: "knn-classifier",
			BatchSize:     100,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// applyEnvOverrides reads SIMIR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIMIR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SIMIR_INDEX_BASENAME"); v != "" {
		cfg.Index.Basename = v
	}
	if v := os.Getenv("SIMIR_CLASSIFIER_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Classifier.K = k
		}
	}
	if v := os.Getenv("SIMIR_CLASSIFIER_MODEL"); v != "" {
		cfg.Classifier.Model = v
	}
	if v := os.Getenv("SIMIR_CLASSIFIER_PARAM"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Classifier.ModelParam = &p
		}
	}
	if v := os.Getenv("SIMIR_CLASSIFIER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Classifier.Workers = n
		}
	}
	if v := os.Getenv("SIMIR_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = v == "true"
	}
	if v := os.Getenv("SIMIR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SIMIR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SIMIR_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true"
	}
	if v := os.Getenv("SIMIR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SIMIR_KAFKA_QUERIES_TOPIC"); v != "" {
		cfg.Kafka.Queries = v
	}
	if v := os.Getenv("SIMIR_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true"
	}
	if v := os.Getenv("SIMIR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SIMIR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SIMIR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIMIR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
