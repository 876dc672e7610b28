package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/cache"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/repository"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
)

type archiveServiceImpl struct {
	repo     repository.MessageRepository
	cache    cache.PageCache
	cacheTTL time.Duration
	sf       singleflight.Group
	now      func() time.Time

	// epochs counts clears per stream. A page loaded under an older epoch
	// must not end up in the cache.
	epochMu sync.Mutex
	epochs  map[string]uint64
}

func NewArchiveService(
	repo repository.MessageRepository,
	pageCache cache.PageCache,
	cacheTTL time.Duration,
) ArchiveService {
	return &archiveServiceImpl{
		repo:     repo,
		cache:    pageCache,
		cacheTTL: cacheTTL,
		now:      time.Now,
		epochs:   make(map[string]uint64),
	}
}

func (s *archiveServiceImpl) SaveMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return fmt.Errorf("failed to save message to repository: %w", err)
	}
	return nil
}

func (s *archiveServiceImpl) RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	msgs, err := s.repo.RecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent messages from repository: %w", err)
	}
	return msgs, nil
}

func (s *archiveServiceImpl) MessagesByDate(ctx context.Context, streamID, date string, offset, limit int) (*domain.DatePage, error) {
	day, err := domain.ParseDay(date)
	if err != nil {
		return nil, err
	}

	// Today's page is still growing, so it bypasses the cache.
	if day == domain.DayOf(s.now()) {
		msgs, total, err := s.repo.ByDate(ctx, streamID, day, offset, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages from repository: %w", err)
		}
		return &domain.DatePage{Messages: msgs, Total: total}, nil
	}

	key := s.cache.DateKey(streamID, day, offset, limit)
	result, err := s.cachedPage(ctx, streamID, key, func() (*cache.PageCacheResult, error) {
		msgs, total, err := s.repo.ByDate(ctx, streamID, day, offset, limit)
		if err != nil {
			return nil, err
		}
		return &cache.PageCacheResult{Messages: msgs, Total: total}, nil
	})
	if err != nil {
		return nil, err
	}

	return &domain.DatePage{Messages: result.Messages, Total: result.Total}, nil
}

func (s *archiveServiceImpl) AvailableDates(ctx context.Context, streamID string) ([]string, error) {
	days, err := s.repo.AvailableDates(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get available dates from repository: %w", err)
	}
	return days, nil
}

func (s *archiveServiceImpl) MessagesBefore(ctx context.Context, streamID string, beforeID int64, limit int) ([]domain.ChatMessage, error) {
	// The latest page changes with every new message.
	if beforeID <= 0 {
		msgs, err := s.repo.OlderThan(ctx, streamID, beforeID, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages from repository: %w", err)
		}
		return msgs, nil
	}

	key := s.cache.BeforeKey(streamID, beforeID, limit)
	result, err := s.cachedPage(ctx, streamID, key, func() (*cache.PageCacheResult, error) {
		msgs, err := s.repo.OlderThan(ctx, streamID, beforeID, limit)
		if err != nil {
			return nil, err
		}
		return &cache.PageCacheResult{Messages: msgs}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.Messages, nil
}

func (s *archiveServiceImpl) Count(ctx context.Context, streamID string) (int64, error) {
	n, err := s.repo.Count(ctx, streamID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages in repository: %w", err)
	}
	return n, nil
}

func (s *archiveServiceImpl) ClearArchive(ctx context.Context, streamID string) error {
	if err := s.repo.DeleteStream(ctx, streamID); err != nil {
		return fmt.Errorf("failed to clear archive: %w", err)
	}
	s.bumpEpoch(streamID)

	if err := s.cache.InvalidateStream(ctx, streamID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("cache invalidate error")
	}
	return nil
}

func (s *archiveServiceImpl) epoch(streamID string) uint64 {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	return s.epochs[streamID]
}

func (s *archiveServiceImpl) bumpEpoch(streamID string) {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	s.epochs[streamID]++
}

// cachedPage serves key from the cache, falling back to load. Concurrent
// callers for the same key share one load.
func (s *archiveServiceImpl) cachedPage(
	ctx context.Context,
	streamID string,
	key string,
	load func() (*cache.PageCacheResult, error),
) (*cache.PageCacheResult, error) {
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			return cached, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			// Log error but continue to fetch from DB
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("cache get error")
		}

		epoch := s.epoch(streamID)
		result, err := load()
		if err != nil {
			return nil, fmt.Errorf("failed to get messages from repository: %w", err)
		}

		// Store in cache (async to avoid blocking response)
		go func() {
			if s.epoch(streamID) != epoch {
				return
			}

			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			l := log.L()
			if err := s.cache.Set(cacheCtx, key, result, s.cacheTTL); err != nil {
				l.Warn().Err(err).Msg("cache set error")
				return
			}
			// The stream was cleared while the write was in flight.
			if s.epoch(streamID) != epoch {
				if err := s.cache.InvalidateStream(cacheCtx, streamID); err != nil {
					l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("cache invalidate error")
				}
			}
		}()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	result, ok := v.(*cache.PageCacheResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return result, nil
}
