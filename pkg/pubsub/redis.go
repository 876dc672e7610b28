package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
)

// ErrStreamMismatch marks an event whose stream id disagrees with the
// channel it arrived on.
var ErrStreamMismatch = errors.New("event stream does not match channel")

// RedisPubSub implements PubSub interface using Redis. Subscriptions are
// keyed by channel or pattern; subscribing again replaces the previous one.
type RedisPubSub struct {
	client        *redis.Client
	subscriptions map[string]*redis.PubSub
	mu            sync.RWMutex
}

// NewRedisPubSub creates a new Redis-based PubSub instance.
func NewRedisPubSub(cfg RedisConfig) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisPubSubFromClient(client), nil
}

// NewRedisPubSubFromClient wraps an existing client, sharing its pool.
func NewRedisPubSubFromClient(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
	}
}

// Publish publishes an event to the specified channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe subscribes to a specific channel.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return r.subscribe(ctx, channel, r.client.Subscribe(ctx, channel))
}

// SubscribePattern subscribes to channels matching a pattern.
func (r *RedisPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return r.subscribe(ctx, pattern, r.client.PSubscribe(ctx, pattern))
}

func (r *RedisPubSub) subscribe(ctx context.Context, key string, ps *redis.PubSub) (<-chan *Event, error) {
	// Receive waits for the subscription confirmation so a broken
	// connection fails here instead of yielding a silent channel.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	r.mu.Lock()
	if prev, ok := r.subscriptions[key]; ok {
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldChannel, key).Msg("redis pubsub: replacing existing subscription")
		_ = prev.Close()
	}
	r.subscriptions[key] = ps
	r.mu.Unlock()

	eventCh := make(chan *Event, 100)
	go r.processMessages(ctx, key, ps, eventCh)

	return eventCh, nil
}

// Unsubscribe unsubscribes from a channel.
func (r *RedisPubSub) Unsubscribe(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ps, ok := r.subscriptions[channel]; ok {
		if err := ps.Close(); err != nil {
			return err
		}
		delete(r.subscriptions, channel)
	}

	return nil
}

// Close closes all subscriptions and the Redis client.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ps := range r.subscriptions {
		ps.Close()
	}
	r.subscriptions = make(map[string]*redis.PubSub)

	return r.client.Close()
}

func (r *RedisPubSub) processMessages(ctx context.Context, key string, ps *redis.PubSub, eventCh chan<- *Event) {
	defer close(eventCh)
	defer r.release(key, ps)

	l := log.Ctx(ctx)
	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			event, err := decodeRedisEvent(msg.Channel, msg.Payload)
			if err != nil {
				l.Warn().Err(err).
					Str(log.FieldChannel, msg.Channel).
					Str(log.FieldStreamID, event.StreamID).
					Msg("redis pubsub: dropping event")
				continue
			}

			// Never drop: the persist subscriber needs every classified message.
			select {
			case eventCh <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// release forgets key if it still maps to ps and closes ps.
func (r *RedisPubSub) release(key string, ps *redis.PubSub) {
	r.mu.Lock()
	if cur, ok := r.subscriptions[key]; ok && cur == ps {
		delete(r.subscriptions, key)
	}
	r.mu.Unlock()
	_ = ps.Close()
}

// decodeRedisEvent parses a payload received on channel. An event without a
// stream id takes it from the channel name. The returned event is never nil.
func decodeRedisEvent(channel, payload string) (*Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return &event, fmt.Errorf("malformed event: %w", err)
	}

	streamID, ok := StreamFromChannel(channel)
	if !ok {
		return &event, nil
	}
	switch event.StreamID {
	case "":
		event.StreamID = streamID
	case streamID:
	default:
		return &event, fmt.Errorf("%w: got %s, channel %s", ErrStreamMismatch, event.StreamID, channel)
	}
	return &event, nil
}
