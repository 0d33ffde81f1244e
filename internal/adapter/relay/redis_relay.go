package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/internal/domain"
	"github.com/complaintdesk/complaintdesk/internal/feed"
	"github.com/complaintdesk/complaintdesk/internal/ports"
)

// DefaultChannel is the Redis Pub/Sub channel shared by all instances
const DefaultChannel = "complaints:changes"

var errRelayClosed = errors.New("relay is closed")

type envelope struct {
	Origin string             `json:"origin"`
	Event  domain.ChangeEvent `json:"event"`
}

// RedisRelay publishes change events to the local feed and to Redis, and
// re-injects events published by other instances into the local feed.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   ports.EventPublisher
	origin  string
	logger  logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
	wg     sync.WaitGroup
}

// NewRedisRelay creates a relay in front of the local publisher
func NewRedisRelay(client *redis.Client, channel string, local ports.EventPublisher, log logger.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	origin := uuid.NewString()
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		origin:  origin,
		logger: log.WithFields(map[string]interface{}{
			"component": "feed_relay",
			"channel":   channel,
			"origin":    origin,
		}),
	}
}

// Start subscribes to the channel and begins forwarding remote events.
// It returns once the subscription is confirmed by Redis.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRelayClosed
	}
	if r.pubsub != nil {
		return nil
	}

	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.pubsub = pubsub

	r.wg.Add(1)
	go r.listen(pubsub.Channel())

	r.logger.Info(ctx, "Feed relay started", nil)
	return nil
}

func (r *RedisRelay) listen(ch <-chan *redis.Message) {
	defer r.wg.Done()
	ctx := context.Background()

	for msg := range ch {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			r.logger.Warn(ctx, "Discarding malformed relay message", map[string]interface{}{"error": err.Error()})
			continue
		}
		if env.Origin == r.origin {
			continue
		}
		if err := r.local.Publish(ctx, env.Event); err != nil {
			fields := map[string]interface{}{"complaint_id": env.Event.ComplaintID}
			if errors.Is(err, feed.ErrFeedClosed) {
				// shutting down
				r.logger.Debug(ctx, "Dropping relayed event, local feed closed", fields)
				continue
			}
			r.logger.Error(ctx, "Failed to publish relayed event locally", err, fields)
		}
	}
}

// Publish delivers evt locally, then announces it to the other instances.
func (r *RedisRelay) Publish(ctx context.Context, evt domain.ChangeEvent) error {
	if err := r.local.Publish(ctx, evt); err != nil {
		return err
	}

	payload, err := json.Marshal(envelope{Origin: r.origin, Event: evt})
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("relay event to %s: %w", r.channel, err)
	}
	return nil
}

// Close stops forwarding remote events. The Redis client is left open.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pubsub := r.pubsub
	r.mu.Unlock()

	var err error
	if pubsub != nil {
		err = pubsub.Close()
	}
	r.wg.Wait()
	return err
}
