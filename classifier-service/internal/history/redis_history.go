package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
)

// RedisHistory keeps a capped list of recent messages per user. The newest
// message sits at the head of the list.
type RedisHistory struct {
	client *redis.Client
	prefix string
	size   int
	ttl    time.Duration
}

// RedisConfig configures the Redis history provider.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	Size     int
	TTL      time.Duration
}

func NewRedisHistory(cfg RedisConfig) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisHistoryFromClient(client, cfg), nil
}

// NewRedisHistoryFromClient wraps an existing client.
func NewRedisHistoryFromClient(client *redis.Client, cfg RedisConfig) *RedisHistory {
	if cfg.Prefix == "" {
		cfg.Prefix = "history"
	}
	if cfg.Size <= 0 {
		cfg.Size = domain.DefaultHistoryLimit
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &RedisHistory{
		client: client,
		prefix: cfg.Prefix,
		size:   cfg.Size,
		ttl:    cfg.TTL,
	}
}

func (h *RedisHistory) key(userID string) string {
	return fmt.Sprintf("%s:user:%s", h.prefix, userID)
}

func (h *RedisHistory) Recent(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 || limit > h.size {
		limit = h.size
	}

	raw, err := h.client.LRange(ctx, h.key(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return decodeNewestFirst(ctx, raw), nil
}

func (h *RedisHistory) Record(ctx context.Context, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := h.key(msg.UserID)
	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(h.size-1))
	pipe.Expire(ctx, key, h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

func (h *RedisHistory) Close() error {
	return h.client.Close()
}

// decodeNewestFirst turns list entries stored newest first into an oldest
// first window. Undecodable entries are skipped.
func decodeNewestFirst(ctx context.Context, raw []string) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("skipping malformed history entry")
			continue
		}
		out = append(out, msg)
	}
	return out
}
