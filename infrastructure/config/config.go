package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	ServerHost         string
	ServerPort         string
	Environment        string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	StoreDriver    string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxIdle  time.Duration

	JWTSecret      string
	JWTAlgorithm   string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	RedisURL     string
	RelayEnabled bool
	RelayChannel string

	RateLimitEnabled       bool
	RateLimitUserAttempts  int
	RateLimitUserWindow    time.Duration
	RateLimitBlockDuration time.Duration

	LogLevel  string
	LogFormat string

	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	// Change feed and streaming
	FeedQueueCapacity    int
	SSEHeartbeatInterval time.Duration
	WSPingInterval       time.Duration
}

var (
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrInvalidTokenTTL     = errors.New("invalid token TTL format")
	ErrInvalidJWTAlgorithm = errors.New("invalid JWT algorithm")
	ErrInvalidStoreDriver  = errors.New("STORE_DRIVER must be memory or postgres")
	ErrMissingRedisURL     = errors.New("REDIS_URL is required when RELAY_ENABLED=true")
)

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost:         getEnvOrDefault("SERVER_HOST", "localhost"),
		ServerPort:         getEnvOrDefault("SERVER_PORT", "8080"),
		Environment:        getEnvOrDefault("ENV", "development"),
		ServerReadTimeout:  getEnvOrDefaultDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getEnvOrDefaultDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),

		StoreDriver:    strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverMemory)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: getEnvOrDefaultInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvOrDefaultInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdle:  getEnvOrDefaultDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTAlgorithm: getEnvOrDefault("JWT_ALG", "HS256"),
		JWTIssuer:    getEnvOrDefault("JWT_ISSUER", "complaintdesk"),

		RedisURL:     os.Getenv("REDIS_URL"),
		RelayEnabled: getEnvOrDefaultBool("RELAY_ENABLED", false),
		RelayChannel: getEnvOrDefault("RELAY_CHANNEL", "complaints:changes"),

		RateLimitEnabled:      getEnvOrDefaultBool("RATE_LIMIT_ENABLED", false),
		RateLimitUserAttempts: getEnvOrDefaultInt("RATE_LIMIT_USER_ATTEMPTS", 60),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		CORSEnabled:          getEnvOrDefaultBool("CORS_ENABLED", true),
		CORSAllowCredentials: getEnvOrDefaultBool("CORS_ALLOW_CREDENTIALS", true),
		CORSAllowedOrigins:   parseAllowedOrigins(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "")),

		FeedQueueCapacity:    getEnvOrDefaultInt("FEED_QUEUE_CAPACITY", 64),
		SSEHeartbeatInterval: getEnvOrDefaultDuration("SSE_HEARTBEAT_INTERVAL", 15*time.Second),
		WSPingInterval:       getEnvOrDefaultDuration("WS_PING_INTERVAL", 30*time.Second),
	}

	switch cfg.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, ErrMissingDatabaseURL
		}
	default:
		return nil, ErrInvalidStoreDriver
	}

	if cfg.JWTAlgorithm != "HS256" {
		return nil, ErrInvalidJWTAlgorithm
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	accessTokenTTL, err := parseTokenTTL(getEnvOrDefault("JWT_ACCESS_TOKEN_TTL", "3600"))
	if err != nil {
		return nil, ErrInvalidTokenTTL
	}
	cfg.AccessTokenTTL = accessTokenTTL

	if (cfg.RelayEnabled || cfg.RateLimitEnabled) && cfg.RedisURL == "" {
		if cfg.RelayEnabled {
			return nil, ErrMissingRedisURL
		}
		cfg.RedisURL = "redis://localhost:6379/0"
	}

	userWindow, err := parseTokenTTL(getEnvOrDefault("RATE_LIMIT_USER_WINDOW", "60"))
	if err != nil {
		return nil, ErrInvalidTokenTTL
	}
	cfg.RateLimitUserWindow = userWindow

	blockDuration, err := parseTokenTTL(getEnvOrDefault("RATE_LIMIT_BLOCK_DURATION", "300"))
	if err != nil {
		return nil, ErrInvalidTokenTTL
	}
	cfg.RateLimitBlockDuration = blockDuration

	if cfg.FeedQueueCapacity <= 0 {
		cfg.FeedQueueCapacity = 64
	}

	return cfg, nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvOrDefaultDuration accepts plain seconds or a Go duration string
func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return d
	}
	return defaultValue
}

func parseTokenTTL(value string) (time.Duration, error) {
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseAllowedOrigins(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}
