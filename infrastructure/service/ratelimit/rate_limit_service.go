package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
)

// RateLimitService decides whether a caller may perform another write
type RateLimitService interface {
	// Allow records one attempt for key and reports whether it is within the limit.
	// A key that exceeds the limit is blocked for the configured duration.
	Allow(ctx context.Context, key string) (bool, error)
	IsBlocked(ctx context.Context, key string) (bool, error)
	GetAttempts(ctx context.Context, key string) (int, error)
}

// RateLimitConfig configures the Redis-backed limiter
type RateLimitConfig struct {
	Enabled       bool
	Attempts      int
	Window        time.Duration
	BlockDuration time.Duration
	KeyPrefix     string
}

// rateLimitService implements RateLimitService with Redis fixed windows
type rateLimitService struct {
	redisClient *redis.Client
	logger      logger.Logger
	config      RateLimitConfig
}

// NewRateLimitService returns a Redis-backed limiter, or a limiter that
// always allows when disabled or without a client.
func NewRateLimitService(config RateLimitConfig, client *redis.Client, log logger.Logger) RateLimitService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if !config.Enabled || client == nil {
		log.Info(context.Background(), "Rate limiting disabled", nil)
		return &noopRateLimitService{}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit"
	}

	log.Info(context.Background(), "Rate limiting service initialized", map[string]interface{}{
		"attempts":       config.Attempts,
		"window":         config.Window.String(),
		"block_duration": config.BlockDuration.String(),
	})

	return &rateLimitService{
		redisClient: client,
		logger:      log.WithFields(map[string]interface{}{"component": "rate_limit"}),
		config:      config,
	}
}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (s *rateLimitService) counterKey(key string) string {
	return fmt.Sprintf("%s:%s", s.config.KeyPrefix, key)
}

func (s *rateLimitService) blockKey(key string) string {
	return fmt.Sprintf("%s:blocked:%s", s.config.KeyPrefix, key)
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, error) {
	blocked, err := s.IsBlocked(ctx, key)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	counter := s.counterKey(key)
	count, err := s.redisClient.Incr(ctx, counter).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to increment rate limit counter", err, map[string]interface{}{"key": key})
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	// first hit opens the window
	if count == 1 {
		if err := s.redisClient.Expire(ctx, counter, s.config.Window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	if count <= int64(s.config.Attempts) {
		return true, nil
	}

	if err := s.block(ctx, key); err != nil {
		return false, err
	}
	return false, nil
}

func (s *rateLimitService) block(ctx context.Context, key string) error {
	blockKey := s.blockKey(key)

	pipeline := s.redisClient.TxPipeline()
	pipeline.HSet(ctx, blockKey, map[string]interface{}{
		"blocked_at":     time.Now().Unix(),
		"duration":       s.config.BlockDuration.Seconds(),
		"correlation_id": logger.CorrelationIDFromContext(ctx),
	})
	pipeline.Expire(ctx, blockKey, s.config.BlockDuration)
	pipeline.Del(ctx, s.counterKey(key))

	if _, err := pipeline.Exec(ctx); err != nil {
		s.logger.Error(ctx, "Failed to block key", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to block key: %w", err)
	}

	s.logger.Warn(ctx, "Key blocked due to rate limit exceeded", map[string]interface{}{
		"key":      key,
		"duration": s.config.BlockDuration.String(),
	})
	return nil
}

func (s *rateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	exists, err := s.redisClient.Exists(ctx, s.blockKey(key)).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
		return false, fmt.Errorf("failed to check block status: %w", err)
	}
	return exists > 0, nil
}

func (s *rateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	count, err := s.redisClient.Get(ctx, s.counterKey(key)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get attempts: %w", err)
	}
	return count, nil
}

// noopRateLimitService is used when rate limiting is disabled
type noopRateLimitService struct{}

func (n *noopRateLimitService) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (n *noopRateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (n *noopRateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	return 0, nil
}
