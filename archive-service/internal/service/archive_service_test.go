package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/cache"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
)

type fakeRepo struct {
	mu          sync.Mutex
	saved       []domain.ChatMessage
	byDateCalls int
	olderCalls  int
	deleted     []string
	err         error
}

func (r *fakeRepo) Save(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = int64(len(r.saved) + 1)
	r.saved = append(r.saved, *msg)
	return r.err
}

func (r *fakeRepo) RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	return nil, r.err
}

func (r *fakeRepo) ByDate(ctx context.Context, streamID, day string, offset, limit int) ([]domain.ChatMessage, int, error) {
	r.mu.Lock()
	r.byDateCalls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, 0, r.err
	}
	return []domain.ChatMessage{{ID: 1, StreamID: streamID, Content: day}}, 7, nil
}

func (r *fakeRepo) AvailableDates(ctx context.Context, streamID string) ([]string, error) {
	return []string{"2026-03-02", "2026-03-01"}, r.err
}

func (r *fakeRepo) OlderThan(ctx context.Context, streamID string, beforeID int64, limit int) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	r.olderCalls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return []domain.ChatMessage{{ID: beforeID - 1, StreamID: streamID}}, nil
}

func (r *fakeRepo) Count(ctx context.Context, streamID string) (int64, error) {
	return 3, r.err
}

func (r *fakeRepo) DeleteStream(ctx context.Context, streamID string) error {
	r.deleted = append(r.deleted, streamID)
	return r.err
}

func (r *fakeRepo) Close() error { return nil }

type memoryCache struct {
	mu          sync.Mutex
	entries     map[string]*cache.PageCacheResult
	sets        chan string
	invalidated []string
	// gate, when set, holds every Set until it is closed. entered is
	// signalled when a Set starts waiting.
	gate    chan struct{}
	entered chan struct{}
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*cache.PageCacheResult), sets: make(chan string, 16)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (*cache.PageCacheResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.entries[key]; ok {
		return r, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *memoryCache) Set(ctx context.Context, key string, result *cache.PageCacheResult, ttl time.Duration) error {
	if c.gate != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
		<-c.gate
	}
	c.mu.Lock()
	c.entries[key] = result
	c.mu.Unlock()
	c.sets <- key
	return nil
}

func (c *memoryCache) DateKey(streamID, day string, offset, limit int) string {
	return fmt.Sprintf("%s:date:%s:%d:%d", streamID, day, offset, limit)
}

func (c *memoryCache) BeforeKey(streamID string, beforeID int64, limit int) string {
	return fmt.Sprintf("%s:before:%d:%d", streamID, beforeID, limit)
}

func (c *memoryCache) InvalidateStream(ctx context.Context, streamID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, streamID)
	for key := range c.entries {
		if strings.HasPrefix(key, streamID+":") {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}

func (c *memoryCache) Close() error { return nil }

func newTestService(repo *fakeRepo, c cache.PageCache) *archiveServiceImpl {
	svc := NewArchiveService(repo, c, time.Minute).(*archiveServiceImpl)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func waitForSet(t *testing.T, c *memoryCache) {
	t.Helper()
	select {
	case <-c.sets:
	case <-time.After(time.Second):
		t.Fatal("cache was not populated")
	}
}

func TestMessagesByDateUsesCache(t *testing.T) {
	repo := &fakeRepo{}
	c := newMemoryCache()
	svc := newTestService(repo, c)
	ctx := context.Background()

	page, err := svc.MessagesByDate(ctx, "s1", "2026-03-01T18:00:00Z", 0, 20)
	if err != nil {
		t.Fatalf("MessagesByDate: %v", err)
	}
	if page.Total != 7 || page.Messages[0].Content != "2026-03-01" {
		t.Fatalf("expected timestamp normalized to day, got %+v", page)
	}
	waitForSet(t, c)

	if _, err := svc.MessagesByDate(ctx, "s1", "2026-03-01", 0, 20); err != nil {
		t.Fatalf("MessagesByDate: %v", err)
	}
	if repo.byDateCalls != 1 {
		t.Fatalf("expected second call to hit the cache, repo called %d times", repo.byDateCalls)
	}
}

func TestMessagesByDateTodayBypassesCache(t *testing.T) {
	repo := &fakeRepo{}
	c := newMemoryCache()
	svc := newTestService(repo, c)

	for i := 0; i < 2; i++ {
		if _, err := svc.MessagesByDate(context.Background(), "s1", "2026-03-10", 0, 20); err != nil {
			t.Fatalf("MessagesByDate: %v", err)
		}
	}
	if repo.byDateCalls != 2 {
		t.Fatalf("expected today's page to skip the cache, repo called %d times", repo.byDateCalls)
	}
}

func TestMessagesByDateInvalid(t *testing.T) {
	svc := newTestService(&fakeRepo{}, newMemoryCache())
	if _, err := svc.MessagesByDate(context.Background(), "s1", "yesterday", 0, 20); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestMessagesBefore(t *testing.T) {
	repo := &fakeRepo{}
	c := newMemoryCache()
	svc := newTestService(repo, c)
	ctx := context.Background()

	msgs, err := svc.MessagesBefore(ctx, "s1", 100, 20)
	if err != nil || len(msgs) != 1 || msgs[0].ID != 99 {
		t.Fatalf("unexpected result %+v err %v", msgs, err)
	}
	waitForSet(t, c)

	if _, err := svc.MessagesBefore(ctx, "s1", 100, 20); err != nil {
		t.Fatalf("MessagesBefore: %v", err)
	}
	if repo.olderCalls != 1 {
		t.Fatalf("expected cached page to be reused, repo called %d times", repo.olderCalls)
	}

	if _, err := svc.MessagesBefore(ctx, "s1", 0, 20); err != nil {
		t.Fatalf("MessagesBefore: %v", err)
	}
	if repo.olderCalls != 2 {
		t.Fatalf("expected latest page to bypass the cache, repo called %d times", repo.olderCalls)
	}
}

func TestRepositoryErrorsPropagate(t *testing.T) {
	boom := errors.New("cassandra down")
	svc := newTestService(&fakeRepo{err: boom}, newMemoryCache())
	ctx := context.Background()

	if _, err := svc.MessagesByDate(ctx, "s1", "2026-03-01", 0, 20); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
	if _, err := svc.MessagesBefore(ctx, "s1", 5, 20); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
	if _, err := svc.Count(ctx, "s1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}

func TestClearArchiveInvalidatesCache(t *testing.T) {
	repo := &fakeRepo{}
	c := newMemoryCache()
	svc := newTestService(repo, c)

	if err := svc.ClearArchive(context.Background(), "s1"); err != nil {
		t.Fatalf("ClearArchive: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "s1" {
		t.Fatalf("expected stream deleted, got %v", repo.deleted)
	}
	if len(c.invalidated) != 1 || c.invalidated[0] != "s1" {
		t.Fatalf("expected cache invalidated, got %v", c.invalidated)
	}
}

func TestClearArchiveWinsOverInFlightCacheWrite(t *testing.T) {
	repo := &fakeRepo{}
	c := newMemoryCache()
	c.gate = make(chan struct{})
	c.entered = make(chan struct{}, 1)
	svc := newTestService(repo, c)
	ctx := context.Background()

	if _, err := svc.MessagesByDate(ctx, "s1", "2026-03-01", 0, 20); err != nil {
		t.Fatalf("MessagesByDate: %v", err)
	}
	select {
	case <-c.entered:
	case <-time.After(time.Second):
		t.Fatal("cache write never started")
	}
	if err := svc.ClearArchive(ctx, "s1"); err != nil {
		t.Fatalf("ClearArchive: %v", err)
	}

	// The write that was queued before the clear lands now.
	close(c.gate)
	waitForSet(t, c)

	deadline := time.Now().Add(time.Second)
	for c.invalidations() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("late cache write was not invalidated")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := c.Get(ctx, c.DateKey("s1", "2026-03-01", 0, 20)); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("expected cleared page to be gone from the cache, got %v", err)
	}
	if _, err := svc.MessagesByDate(ctx, "s1", "2026-03-01", 0, 20); err != nil {
		t.Fatalf("MessagesByDate: %v", err)
	}
	if repo.byDateCalls != 2 {
		t.Fatalf("expected the page to be reloaded after the clear, got %d loads", repo.byDateCalls)
	}
}

func TestClearEpochIsPerStream(t *testing.T) {
	repo := &fakeRepo{}
	c := newMemoryCache()
	svc := newTestService(repo, c)

	svc.bumpEpoch("s1")
	epoch := svc.epoch("s1")
	if epoch != 1 {
		t.Fatalf("expected epoch 1, got %d", epoch)
	}
	if other := svc.epoch("s2"); other != 0 {
		t.Fatalf("expected epochs to be per stream, got %d", other)
	}
}

func TestSaveMessageFillsTimestamp(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, newMemoryCache())

	msg := domain.ChatMessage{StreamID: "s1", UserID: "u1", Content: "hi"}
	if err := svc.SaveMessage(context.Background(), &msg); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if msg.ID != 1 || msg.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp to be set, got %+v", msg)
	}
}
