package cache

import (
	"context"
	"errors"
	"time"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// PageCacheResult is a cached page of messages. Total is only meaningful for
// date pages.
type PageCacheResult struct {
	Messages []domain.ChatMessage `json:"messages"`
	Total    int                  `json:"total"`
}

type PageCache interface {
	Get(ctx context.Context, key string) (*PageCacheResult, error)
	Set(ctx context.Context, key string, result *PageCacheResult, ttl time.Duration) error
	DateKey(streamID, day string, offset, limit int) string
	BeforeKey(streamID string, beforeID int64, limit int) string
	// InvalidateStream drops every cached page of the stream.
	InvalidateStream(ctx context.Context, streamID string) error
	Close() error
}
