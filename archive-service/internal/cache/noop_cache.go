package cache

import (
	"context"
	"fmt"
	"time"
)

// NoopPageCache misses on every read. It is used when caching is disabled.
type NoopPageCache struct{}

func NewNoopPageCache() NoopPageCache {
	return NoopPageCache{}
}

func (NoopPageCache) Get(context.Context, string) (*PageCacheResult, error) {
	return nil, ErrCacheMiss
}

func (NoopPageCache) Set(context.Context, string, *PageCacheResult, time.Duration) error {
	return nil
}

func (NoopPageCache) DateKey(streamID, day string, offset, limit int) string {
	return fmt.Sprintf("%s:date:%s:%d:%d", streamID, day, offset, limit)
}

func (NoopPageCache) BeforeKey(streamID string, beforeID int64, limit int) string {
	return fmt.Sprintf("%s:before:%d:%d", streamID, beforeID, limit)
}

func (NoopPageCache) InvalidateStream(context.Context, string) error {
	return nil
}

func (NoopPageCache) Close() error {
	return nil
}
