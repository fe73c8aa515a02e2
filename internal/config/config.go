package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config chứa toàn bộ application configuration
// Struct này được populate từ environment variables (và .env nếu có)
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Search   SearchConfig
	Import   ImportConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	LogLevel    string
	Version     string
}

type DatabaseConfig struct {
	URL      string // DATABASE_URL, ưu tiên hơn các field rời
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	ConnectTimeout    time.Duration
}

type RedisConfig struct {
	Enabled   bool
	Host      string
	Password  string
	DB        int
	BookTTL   time.Duration
	LookupTTL time.Duration
}

// SearchConfig - giới hạn và ngưỡng cho search
type SearchConfig struct {
	DefaultLimit        int
	MaxLimit            int
	SimilarityThreshold float64
}

type ImportConfig struct {
	Concurrency int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "catalogctl")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_VERSION", "1.0.0")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "bookcatalog")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNECTIONS", 10)
	v.SetDefault("DB_MIN_CONNECTIONS", 1)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "5m")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "1m")
	v.SetDefault("DB_HEALTH_CHECK_PERIOD", "1m")
	v.SetDefault("DB_MAX_RETRIES", 5)
	v.SetDefault("DB_RETRY_DELAY", "1s")
	v.SetDefault("DB_CONNECT_TIMEOUT", "10s")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_BOOK_TTL", "10m")
	v.SetDefault("REDIS_LOOKUP_TTL", "1h")

	v.SetDefault("SEARCH_DEFAULT_LIMIT", 20)
	v.SetDefault("SEARCH_MAX_LIMIT", 100)
	v.SetDefault("SEARCH_SIMILARITY_THRESHOLD", 0.3)

	v.SetDefault("IMPORT_CONCURRENCY", 4)
}

// Load đọc config từ environment variables. envFile rỗng thì bỏ qua .env;
// file không tồn tại cũng không phải lỗi.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// godotenv.Load không override biến đã set trong môi trường
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: v.GetString("APP_ENV"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			Version:     v.GetString("APP_VERSION"),
		},
		Database: DatabaseConfig{
			URL:               v.GetString("DATABASE_URL"),
			Host:              v.GetString("DB_HOST"),
			Port:              v.GetInt("DB_PORT"),
			User:              v.GetString("DB_USER"),
			Password:          v.GetString("DB_PASSWORD"),
			Database:          v.GetString("DB_NAME"),
			SSLMode:           v.GetString("DB_SSLMODE"),
			MaxConns:          v.GetInt("DB_MAX_CONNECTIONS"),
			MinConns:          v.GetInt("DB_MIN_CONNECTIONS"),
			MaxConnLifetime:   v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime:   v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
			HealthCheckPeriod: v.GetDuration("DB_HEALTH_CHECK_PERIOD"),
			MaxRetries:        v.GetInt("DB_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("DB_RETRY_DELAY"),
			ConnectTimeout:    v.GetDuration("DB_CONNECT_TIMEOUT"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("REDIS_ENABLED"),
			Host:      v.GetString("REDIS_HOST"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			BookTTL:   v.GetDuration("REDIS_BOOK_TTL"),
			LookupTTL: v.GetDuration("REDIS_LOOKUP_TTL"),
		},
		Search: SearchConfig{
			DefaultLimit:        v.GetInt("SEARCH_DEFAULT_LIMIT"),
			MaxLimit:            v.GetInt("SEARCH_MAX_LIMIT"),
			SimilarityThreshold: v.GetFloat64("SEARCH_SIMILARITY_THRESHOLD"),
		},
		Import: ImportConfig{
			Concurrency: v.GetInt("IMPORT_CONCURRENCY"),
		},
	}

	// Validate critical config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate kiểm tra config có hợp lệ không
func (c *Config) Validate() error {
	if c.App.Environment == "production" && c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD must be set in production")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) exceeds DB_MAX_CONNECTIONS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}
	if t := c.Search.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("SEARCH_SIMILARITY_THRESHOLD must be in (0, 1], got %v", t)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("invalid search limits: default=%d max=%d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Import.Concurrency < 1 {
		return fmt.Errorf("IMPORT_CONCURRENCY must be at least 1")
	}
	return nil
}
