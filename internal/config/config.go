package config

import (
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-local/internal/configs/env"
)

// Config holds all configuration for the application
type Config struct {
	// Corpus
	CorpusDir   string
	CorpusCache bool
	CorpusWatch bool

	// MongoDB
	MongoURI    string
	MongoDBName string

	// Redis
	RedisHost               string
	RedisPassword           string
	RedisDB                 int
	RedisStreamKey          string
	RedisConsumerGroup      string
	RedisDeadLetterKey      string
	StreamEnabled           bool
	StreamRetentionDuration time.Duration
	StatusTTL               time.Duration

	// JWT
	JWTSecret string
	JWTIssuer string

	// Rate Limiting
	RateLimitRPS float64

	// Concurrency
	Workers           int
	MaxConcurrentSync int

	// Computation
	CheckTimeout time.Duration
	MaxTextBytes int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	MetricsPort string
}

// Load reads the configuration from the environment. When CONFIG_FILE is
// set, its keys fill in whatever the environment leaves unset.
func Load() (*Config, error) {
	if path := env.GetEnv("CONFIG_FILE", ""); path != "" {
		if err := env.LoadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}

	// Corpus
	cfg.CorpusDir = env.GetEnv("CORPUS_DIR", "reference_corpus")
	cfg.CorpusCache = env.GetEnvBool("CORPUS_CACHE", true)
	cfg.CorpusWatch = env.GetEnvBool("CORPUS_WATCH", true)

	// MongoDB
	cfg.MongoURI = env.GetEnv("MONGO_URI", "")
	cfg.MongoDBName = env.GetEnv("MONGO_DB_NAME", "")

	// Redis
	cfg.RedisHost = env.GetEnv("REDIS_HOST", "localhost:6379")
	cfg.RedisPassword = env.GetEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = env.GetEnvInt("REDIS_DB", 0)
	cfg.RedisStreamKey = env.GetEnv("REDIS_STREAM_KEY", "overlap:stream")
	cfg.RedisConsumerGroup = env.GetEnv("REDIS_CONSUMER_GROUP", "overlap:group")
	cfg.RedisDeadLetterKey = env.GetEnv("REDIS_DEAD_LETTER_KEY", "overlap:dlq")
	cfg.StreamEnabled = env.GetEnvBool("STREAM_ENABLED", true)
	retentionHours := env.GetEnvInt("STREAM_RETENTION_HOURS", 24)
	cfg.StreamRetentionDuration = time.Duration(retentionHours) * time.Hour
	cfg.StatusTTL = env.GetEnvDuration("STATUS_TTL", 12*time.Hour)

	// JWT
	cfg.JWTSecret = env.GetEnv("JWT_SECRET", "")
	cfg.JWTIssuer = env.GetEnv("JWT_ISSUER", "aegis")

	// Rate Limiting
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 10.0)

	// Concurrency
	cfg.Workers = env.GetEnvInt("WORKERS", 0)
	cfg.MaxConcurrentSync = env.GetEnvInt("MAX_CONCURRENT_SYNC", 5)

	// Computation
	cfg.CheckTimeout = env.GetEnvDuration("CHECK_TIMEOUT", 2*time.Minute)
	cfg.MaxTextBytes = env.GetEnvInt("MAX_TEXT_BYTES", 2<<20)

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")

	// Server
	cfg.ServerPort = env.GetEnv("SERVER_PORT", "8080")
	cfg.MetricsPort = env.GetEnv("METRICS_PORT", "2112")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CorpusDir == "" {
		return fmt.Errorf("CORPUS_DIR is required")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.MongoDBName == "" {
		return fmt.Errorf("MONGO_DB_NAME is required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be greater than 0")
	}
	if c.MaxConcurrentSync <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_SYNC must be greater than 0")
	}
	if c.MaxTextBytes <= 0 {
		return fmt.Errorf("MAX_TEXT_BYTES must be greater than 0")
	}
	if c.CheckTimeout <= 0 {
		return fmt.Errorf("CHECK_TIMEOUT must be greater than 0")
	}
	if c.StreamRetentionDuration <= 0 {
		return fmt.Errorf("STREAM_RETENTION_HOURS must be greater than 0")
	}
	return nil
}
