package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/internal/domain"
	"github.com/complaintdesk/complaintdesk/internal/feed"
)

// Sink is the external consumer a gateway forwards events into
type Sink interface {
	Send(ctx context.Context, evt domain.ChangeEvent) error
}

// Heartbeater is implemented by sinks that need keepalive traffic while idle
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// Options tune a gateway
type Options struct {
	// HeartbeatInterval is how long the gateway may stay idle before calling
	// the sink's Heartbeat. Zero disables heartbeats.
	HeartbeatInterval time.Duration
	Logger            logger.Logger
}

// Gateway bridges one external connection to one feed subscription.
// It never touches the complaint store.
type Gateway struct {
	feed    *feed.Feed
	sub     *feed.Subscription
	subject domain.Subject
	sink    Sink
	opts    Options
	logger  logger.Logger

	closeOnce sync.Once
}

// Attach subscribes on behalf of subject using the role-derived filter
func Attach(f *feed.Feed, subject domain.Subject, sink Sink, opts Options) (*Gateway, error) {
	filter, err := feed.FilterFor(subject)
	if err != nil {
		return nil, err
	}
	sub, err := f.Subscribe(filter)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Gateway{
		feed:    f,
		sub:     sub,
		subject: subject,
		sink:    sink,
		opts:    opts,
		logger: log.WithFields(map[string]interface{}{
			"component":     "session_gateway",
			"subscriber_id": sub.ID(),
			"user_id":       subject.ID,
			"role":          string(subject.Role),
		}),
	}, nil
}

func (g *Gateway) ID() string { return g.sub.ID() }
func (g *Gateway) Subject() domain.Subject { return g.subject }
func (g *Gateway) Done() <-chan struct{} { return g.sub.Done() }
func (g *Gateway) Dropped() uint64 { return g.sub.Dropped() }

// Run forwards queued events to the sink until ctx is done, the gateway is
// closed, or the sink fails. A sink failure closes the gateway and is
// returned; the other two cases return nil.
func (g *Gateway) Run(ctx context.Context) error {
	defer g.Close()

	heartbeater, _ := g.sink.(Heartbeater)
	for {
		evt, err := g.next(ctx, heartbeater != nil)
		switch {
		case err == nil:
		case errors.Is(err, errIdle):
			if hbErr := heartbeater.Heartbeat(ctx); hbErr != nil {
				g.logger.Debug(ctx, "Heartbeat failed, closing session", map[string]interface{}{"error": hbErr.Error()})
				return fmt.Errorf("heartbeat: %w", hbErr)
			}
			continue
		case errors.Is(err, feed.ErrSubscriptionClosed), ctx.Err() != nil:
			return nil
		default:
			return err
		}

		if err := g.sink.Send(ctx, evt); err != nil {
			g.logger.Debug(ctx, "Sink delivery failed, closing session", map[string]interface{}{
				"complaint_id": evt.ComplaintID,
				"error":        err.Error(),
			})
			return fmt.Errorf("deliver event: %w", err)
		}
	}
}

var errIdle = errors.New("gateway idle")

func (g *Gateway) next(ctx context.Context, heartbeat bool) (domain.ChangeEvent, error) {
	if !heartbeat || g.opts.HeartbeatInterval <= 0 {
		return g.sub.Next(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.opts.HeartbeatInterval)
	defer cancel()

	evt, err := g.sub.Next(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return evt, errIdle
	}
	return evt, err
}

// Close detaches the gateway from the feed and discards its queue.
// Safe to call concurrently with Run and with in-flight publishes.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		g.feed.Unsubscribe(g.sub)
		g.logger.Debug(context.Background(), "Session detached", map[string]interface{}{
			"dropped": g.sub.Dropped(),
		})
	})
}
