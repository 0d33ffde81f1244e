package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 64, cfg.FeedQueueCapacity)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 15*time.Second, cfg.SSEHeartbeatInterval)
	assert.False(t, cfg.RelayEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/complaints?sslmode=disable")
	t.Setenv("FEED_QUEUE_CAPACITY", "128")
	t.Setenv("SSE_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("WS_PING_INTERVAL", "10")
	t.Setenv("RELAY_ENABLED", "true")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 128, cfg.FeedQueueCapacity)
	assert.Equal(t, 5*time.Second, cfg.SSEHeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.WSPingInterval)
	assert.True(t, cfg.RelayEnabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}, ErrMissingJWTSecret},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}, ErrMissingDatabaseURL},
		{"unknown driver", map[string]string{"STORE_DRIVER": "sqlite"}, ErrInvalidStoreDriver},
		{"unsupported alg", map[string]string{"JWT_ALG": "RS256"}, ErrInvalidJWTAlgorithm},
		{"bad ttl", map[string]string{"JWT_ACCESS_TOKEN_TTL": "soon"}, ErrInvalidTokenTTL},
		{"relay without redis", map[string]string{"RELAY_ENABLED": "true", "REDIS_URL": ""}, ErrMissingRedisURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
