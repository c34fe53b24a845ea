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
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Session  SessionConfig
	SDK      SDKConfig
	Zego     ZegoConfig
	Room     RoomConfig
	Breaker  BreakerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/workshops?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the bucket used for roster exports.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	RostersBucket        string
	PresignExpireMinutes int
}

// SessionConfig controls join windows and credential lifetimes.
type SessionConfig struct {
	JoinLead           time.Duration // joining opens this long before the scheduled start
	DefaultDuration    time.Duration // used when a workshop has neither ends_at nor duration
	CredentialLifetime time.Duration
	JoinTimeout        time.Duration // deadline for one join request (store + provider)
	RetryBackoff       time.Duration // pause before the single retry of a transient failure
}

// SDKConfig holds the signature-based meeting SDK settings.
type SDKConfig struct {
	AppKey    string
	AppSecret string
	Signing   string // "jwt" (default) or "zego"
}

// ZegoConfig holds ZEGOCLOUD credentials for the "zego" signing scheme.
type ZegoConfig struct {
	AppID        uint32
	ServerSecret string // 32 characters
}

// RoomConfig holds the room-link provider settings.
type RoomConfig struct {
	BaseURL string // e.g. https://meet.example.com
}

// BreakerConfig tunes the per-provider circuit breaker.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
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

	zegoAppID, err := strconv.ParseUint(getEnv("ZEGO_APP_ID", "0"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse ZEGO_APP_ID: %w", err)
	}
	failureRatio, err := strconv.ParseFloat(getEnv("BREAKER_FAILURE_RATIO", "0.6"), 64)
	if err != nil {
		return nil, fmt.Errorf("parse BREAKER_FAILURE_RATIO: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "workshops"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RostersBucket:        getEnv("AWS_S3_ROSTERS_BUCKET", "workshop-rosters"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Session: SessionConfig{
			JoinLead:           time.Duration(getEnvInt("JOIN_LEAD_MINUTES", 10)) * time.Minute,
			DefaultDuration:    time.Duration(getEnvInt("DEFAULT_DURATION_MINUTES", 60)) * time.Minute,
			CredentialLifetime: time.Duration(getEnvInt("CREDENTIAL_LIFETIME_SEC", 300)) * time.Second,
			JoinTimeout:        time.Duration(getEnvInt("JOIN_TIMEOUT_MS", 5000)) * time.Millisecond,
			RetryBackoff:       time.Duration(getEnvInt("RETRY_BACKOFF_MS", 200)) * time.Millisecond,
		},
		SDK: SDKConfig{
			AppKey:    getEnv("SDK_APP_KEY", ""),
			AppSecret: getEnv("SDK_APP_SECRET", ""),
			Signing:   strings.ToLower(getEnv("SDK_SIGNING", "jwt")),
		},
		Zego: ZegoConfig{
			AppID:        uint32(zegoAppID),
			ServerSecret: getEnv("ZEGO_SERVER_SECRET", ""),
		},
		Room: RoomConfig{
			BaseURL: strings.TrimRight(getEnv("ROOM_BASE_URL", ""), "/"),
		},
		Breaker: BreakerConfig{
			MaxRequests:  uint32(getEnvInt("BREAKER_MAX_REQUESTS", 5)),
			Interval:     time.Duration(getEnvInt("BREAKER_INTERVAL_SEC", 30)) * time.Second,
			Timeout:      time.Duration(getEnvInt("BREAKER_TIMEOUT_SEC", 10)) * time.Second,
			FailureRatio: failureRatio,
			MinRequests:  uint32(getEnvInt("BREAKER_MIN_REQUESTS", 5)),
		},
	}
	if cfg.Session.CredentialLifetime <= 0 {
		return nil, fmt.Errorf("CREDENTIAL_LIFETIME_SEC must be positive")
	}
	if cfg.Session.JoinLead < 0 {
		return nil, fmt.Errorf("JOIN_LEAD_MINUTES must not be negative")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
