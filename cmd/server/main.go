package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/complaintdesk/complaintdesk/infrastructure/config"
	"github.com/complaintdesk/complaintdesk/infrastructure/http/middleware"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/jwt"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/ratelimit"
	httpadapter "github.com/complaintdesk/complaintdesk/internal/adapter/http"
	"github.com/complaintdesk/complaintdesk/internal/adapter/memory"
	"github.com/complaintdesk/complaintdesk/internal/adapter/persistence"
	"github.com/complaintdesk/complaintdesk/internal/adapter/relay"
	"github.com/complaintdesk/complaintdesk/internal/feed"
	"github.com/complaintdesk/complaintdesk/internal/ports"
	"github.com/complaintdesk/complaintdesk/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("complaintdesk: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize structured logger
	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "complaintdesk",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env":          cfg.Environment,
		"store_driver": cfg.StoreDriver,
		"relay":        cfg.RelayEnabled,
	})

	// Complaint store
	var repo ports.ComplaintRepository
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		repo = persistence.NewPostgresComplaintRepository(db)
		structuredLogger.Info(ctx, "Database connection established", map[string]interface{}{
			"max_open_conns": cfg.DBMaxOpenConns,
		})
	default:
		repo = memory.NewComplaintRepository()
		structuredLogger.Warn(ctx, "Using in-memory complaint store; data is lost on restart", nil)
	}

	// Redis backs both the cross-instance relay and rate limiting
	var redisClient *redis.Client
	if cfg.RelayEnabled || cfg.RateLimitEnabled {
		redisClient, err = ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			if cfg.RelayEnabled {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			structuredLogger.Warn(ctx, "Redis unavailable, rate limiting disabled", map[string]interface{}{
				"error": err.Error(),
			})
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Change feed, optionally fanned out across instances
	changes := feed.New(cfg.FeedQueueCapacity, structuredLogger)
	defer changes.Close()
	var publisher ports.EventPublisher = changes
	var changeRelay *relay.RedisRelay
	if cfg.RelayEnabled {
		changeRelay = relay.NewRedisRelay(redisClient, cfg.RelayChannel, changes, structuredLogger)
		if err := changeRelay.Start(ctx); err != nil {
			return fmt.Errorf("failed to start feed relay: %w", err)
		}
		defer changeRelay.Close()
		publisher = changeRelay
	}

	complaintUseCase := usecase.NewComplaintUseCase(repo, publisher, changes, structuredLogger)

	// Initialize services
	tokenService, err := jwt.NewJWTService(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	rateLimitService := ratelimit.NewRateLimitService(ratelimit.RateLimitConfig{
		Enabled:       cfg.RateLimitEnabled,
		Attempts:      cfg.RateLimitUserAttempts,
		Window:        cfg.RateLimitUserWindow,
		BlockDuration: cfg.RateLimitBlockDuration,
	}, redisClient, structuredLogger)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService, structuredLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(rateLimitService, structuredLogger, cfg.RateLimitBlockDuration)

	// Initialize handlers
	complaintHandler := httpadapter.NewComplaintHandler(complaintUseCase, structuredLogger)
	streamHandler := httpadapter.NewStreamHandler(complaintUseCase.Feed(), httpadapter.StreamConfig{
		HeartbeatInterval: cfg.SSEHeartbeatInterval,
		PingInterval:      cfg.WSPingInterval,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
	}, structuredLogger)

	router := httpadapter.NewRouter(complaintHandler, streamHandler, httpadapter.RouteGuards{
		Auth:       authMiddleware.RequireAuth,
		StreamAuth: authMiddleware.RequireStreamAuth,
		Throttle:   rateLimitMiddleware.RateLimit,
	}, func(context.Context) map[string]interface{} {
		return map[string]interface{}{
			"sessions":     changes.Len(),
			"store_driver": cfg.StoreDriver,
		}
	})

	// Compose middleware: request log, then correlation id, then CORS (if enabled)
	var handler http.Handler = middleware.RequestLogger(structuredLogger)(router)
	handler = middleware.CorrelationIDMiddleware(handler)
	if cfg.CORSEnabled && len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORSMiddleware(handler, cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials)
	}

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Addr:         cfg.Addr(),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}, handler, structuredLogger)

	// live sessions end when shutdown starts; the relay stops before the feed
	server.OnShutdown(func() {
		if changeRelay != nil {
			if err := changeRelay.Close(); err != nil {
				structuredLogger.Error(ctx, "Failed to close feed relay", err, nil)
			}
		}
		changes.Close()
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server failed on %s: %w", cfg.Addr(), err)
		}
	}

	structuredLogger.Info(ctx, "Shutting down server...", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, nil)
	}

	structuredLogger.Info(ctx, "Server exited", nil)
	return runErr
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdle)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
