package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const subscribeTimeout = 5 * time.Second

// RedisSource implements Source and Publisher over redis pub/sub. Each topic
// is one redis channel; redis delivers publishes on a channel in order, which
// gives the per-topic commit-order guarantee the sync engine relies on.
type RedisSource struct {
	rdb *goredis.Client
}

// NewRedisSource creates a source from a redis URL and verifies the
// connection.
func NewRedisSource(redisURL string) (*RedisSource, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisSource{rdb: rdb}, nil
}

// Close closes the underlying redis connection.
func (s *RedisSource) Close() error {
	return s.rdb.Close()
}

// Client exposes the underlying redis client so callers can share the
// connection for non-pubsub work such as rate limiting.
func (s *RedisSource) Client() *goredis.Client {
	return s.rdb
}

// Publish marshals and publishes a change event to a topic.
func (s *RedisSource) Publish(ctx context.Context, topic string, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling change event: %w", err)
	}
	if err := s.rdb.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a subscription on a topic. The returned handle is live
// immediately; delivery begins once onStatus reports SUBSCRIBED. Subscribe
// failures surface through onStatus as CHANNEL_ERROR or TIMED_OUT.
func (s *RedisSource) Subscribe(ctx context.Context, topic string, filter Filter, handler Handler, onStatus StatusFunc) Handle {
	sub := &redisSubscription{
		id:    uuid.NewString(),
		topic: topic,
		done:  make(chan struct{}),
	}
	go s.run(ctx, sub, filter, handler, onStatus)
	return sub
}

func (s *RedisSource) run(ctx context.Context, sub *redisSubscription, filter Filter, handler Handler, onStatus StatusFunc) {
	pubsub := s.rdb.Subscribe(ctx, sub.topic)

	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		_ = pubsub.Close()
		return
	}
	sub.pubsub = pubsub
	sub.mu.Unlock()

	// Wait for the subscribe confirmation before reporting SUBSCRIBED.
	confirmCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	_, err := pubsub.Receive(confirmCtx)
	cancel()
	if err != nil {
		status := StatusChannelError
		if confirmCtx.Err() == context.DeadlineExceeded {
			status = StatusTimedOut
		}
		slog.Error("subscribe failed", "topic", sub.topic, "error", err)
		report(onStatus, status)
		sub.Unsubscribe()
		return
	}
	report(onStatus, StatusSubscribed)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				report(onStatus, StatusClosed)
				return
			}
			var event ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Error("malformed change event", "topic", sub.topic, "error", err)
				continue
			}
			if !filter.matches(event) {
				continue
			}
			dispatch(sub.topic, handler, event)

		case <-sub.done:
			report(onStatus, StatusClosed)
			return

		case <-ctx.Done():
			sub.Unsubscribe()
			report(onStatus, StatusClosed)
			return
		}
	}
}

// dispatch invokes a handler, recovering panics so one bad event cannot kill
// the subscription's delivery loop.
func dispatch(topic string, handler Handler, event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panic", "topic", topic, "panic", r)
		}
	}()
	handler(event)
}

func report(onStatus StatusFunc, status Status) {
	if onStatus != nil {
		onStatus(status)
	}
}

type redisSubscription struct {
	id    string
	topic string

	mu     sync.Mutex
	pubsub *goredis.PubSub
	closed bool
	done   chan struct{}
}

func (r *redisSubscription) Topic() string { return r.topic }

// Unsubscribe tears down the subscription. Safe to call more than once and
// safe to call before the subscribe confirmation has arrived.
func (r *redisSubscription) Unsubscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
	if r.pubsub != nil {
		_ = r.pubsub.Close()
	}
}
