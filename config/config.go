package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Presence  PresenceConfig
	Hotels    HotelsConfig
	Discovery DiscoveryConfig
	Archive   ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:5173)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string // if set, used as-is (e.g. postgres://localhost:5432/yatri?sslmode=disable)
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	AutoMigrate     bool
	MaxConnLifetime time.Duration
}

// StoreConfig selects the data store backend.
type StoreConfig struct {
	Driver    string // postgres or memory
	OpTimeout time.Duration
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis
// and switches pub/sub, presence, caching, revocation and the queue to in-process fallbacks.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the transcripts bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TranscriptsBucket    string
	PresignExpireMinutes int
	S3Endpoint           string
}

// Enabled reports whether transcript archiving to S3 is configured.
func (c AWSConfig) Enabled() bool { return c.TranscriptsBucket != "" }

// PresenceConfig holds heartbeat settings. Online status lasts three intervals.
type PresenceConfig struct {
	HeartbeatInterval time.Duration
}

// HotelsConfig configures the hotel price proxy.
type HotelsConfig struct {
	BaseURL        string
	APIKey         string
	RequestsPerSec float64
	Burst          int
	CacheTTL       time.Duration
}

// DiscoveryConfig configures the suggestion generator.
type DiscoveryConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	CacheTTL time.Duration
}

// ArchiveConfig configures the trip expiry sweeper.
type ArchiveConfig struct {
	SweepInterval time.Duration
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "yatri"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 20),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		},
		Store: StoreConfig{
			Driver:    strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
			OpTimeout: getEnvDuration("STORE_OP_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "ap-south-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TranscriptsBucket:    getEnv("AWS_S3_TRANSCRIPTS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
			S3Endpoint:           getEnv("AWS_S3_ENDPOINT", ""),
		},
		Presence: PresenceConfig{
			HeartbeatInterval: getEnvDuration("PRESENCE_HEARTBEAT_INTERVAL", 30*time.Second),
		},
		Hotels: HotelsConfig{
			BaseURL:        getEnv("HOTELS_API_URL", ""),
			APIKey:         getEnv("HOTELS_API_KEY", ""),
			RequestsPerSec: getEnvFloat("HOTELS_RATE_PER_SEC", 2),
			Burst:          getEnvInt("HOTELS_RATE_BURST", 4),
			CacheTTL:       getEnvDuration("HOTELS_CACHE_TTL", 10*time.Minute),
		},
		Discovery: DiscoveryConfig{
			Endpoint: getEnv("LLM_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
			APIKey:   getEnv("LLM_API_KEY", ""),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
			CacheTTL: getEnvDuration("DISCOVERY_CACHE_TTL", 30*time.Minute),
		},
		Archive: ArchiveConfig{
			SweepInterval: getEnvDuration("ARCHIVE_SWEEP_INTERVAL", time.Hour),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Store.Driver)
	}
	if c.Store.OpTimeout <= 0 {
		return fmt.Errorf("STORE_OP_TIMEOUT must be positive")
	}
	if c.Presence.HeartbeatInterval <= 0 {
		return fmt.Errorf("PRESENCE_HEARTBEAT_INTERVAL must be positive")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "15m") or bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
