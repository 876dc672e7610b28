package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/pkg/database"
)

func newTestRepo(t *testing.T) *GormMessageRepository {
	t.Helper()
	repo, err := NewGormMessageRepository(&database.Config{
		Driver:       "sqlite",
		FilePath:     "file::memory:",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("NewGormMessageRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seed(t *testing.T, repo MessageRepository, streamID, userID string, at time.Time, n int) []domain.ChatMessage {
	t.Helper()
	out := make([]domain.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		msg := domain.ChatMessage{
			StreamID:  streamID,
			UserID:    userID,
			Username:  "viewer",
			Platform:  "twitch",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: at.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Save(context.Background(), &msg); err != nil {
			t.Fatalf("Save: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func TestGormSaveAssignsIncreasingIDs(t *testing.T) {
	repo := newTestRepo(t)
	msgs := seed(t, repo, "s1", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 3)

	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			t.Fatalf("ids not increasing: %d then %d", msgs[i-1].ID, msgs[i].ID)
		}
	}
}

func TestGormByDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 5)
	seed(t, repo, "s1", "u1", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), 2)
	seed(t, repo, "s2", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 4)

	page, total, err := repo.ByDate(ctx, "s1", "2026-03-01", 1, 2)
	if err != nil {
		t.Fatalf("ByDate: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(page) != 2 || page[0].Content != "message 1" || page[1].Content != "message 2" {
		t.Fatalf("unexpected page %+v", page)
	}

	page, total, err = repo.ByDate(ctx, "s1", "2026-03-01", 10, 2)
	if err != nil || total != 5 || len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %d msgs total %d err %v", len(page), total, err)
	}

	page, total, err = repo.ByDate(ctx, "s1", "2025-01-01", 0, 20)
	if err != nil || total != 0 || page == nil || len(page) != 0 {
		t.Fatalf("expected empty non-nil page for empty day, got %v total %d err %v", page, total, err)
	}
}

func TestGormAvailableDates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 2)
	seed(t, repo, "s1", "u1", time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), 1)
	seed(t, repo, "s1", "u1", time.Date(2026, 2, 27, 23, 0, 0, 0, time.UTC), 1)

	days, err := repo.AvailableDates(ctx, "s1")
	if err != nil {
		t.Fatalf("AvailableDates: %v", err)
	}
	want := []string{"2026-03-03", "2026-03-01", "2026-02-27"}
	if len(days) != len(want) {
		t.Fatalf("expected %v, got %v", want, days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, days)
		}
	}

	empty, err := repo.AvailableDates(ctx, "missing")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil dates, got %v err %v", empty, err)
	}
}

func TestGormOlderThan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	msgs := seed(t, repo, "s1", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 6)

	before := msgs[4].ID
	older, err := repo.OlderThan(ctx, "s1", before, 3)
	if err != nil {
		t.Fatalf("OlderThan: %v", err)
	}
	if len(older) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(older))
	}
	for i, m := range older {
		if m.ID >= before {
			t.Fatalf("message %d has id %d >= before %d", i, m.ID, before)
		}
		if i > 0 && m.ID >= older[i-1].ID {
			t.Fatal("expected newest first")
		}
	}

	latest, err := repo.OlderThan(ctx, "s1", 0, 2)
	if err != nil || len(latest) != 2 || latest[0].ID != msgs[5].ID {
		t.Fatalf("expected newest two messages, got %+v err %v", latest, err)
	}

	none, err := repo.OlderThan(ctx, "s1", msgs[0].ID, 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected nothing older than the first message, got %+v err %v", none, err)
	}
}

func TestGormRecentByUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 7)
	seed(t, repo, "s1", "u2", time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), 1)

	recent, err := repo.RecentByUser(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("RecentByUser: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(recent))
	}
	if recent[0].Content != "message 2" || recent[4].Content != "message 6" {
		t.Fatalf("expected newest five oldest first, got %q..%q", recent[0].Content, recent[4].Content)
	}
}

func TestGormCountAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seed(t, repo, "s1", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 4)
	seed(t, repo, "s2", "u1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 1)

	n, err := repo.Count(ctx, "s1")
	if err != nil || n != 4 {
		t.Fatalf("expected count 4, got %d err %v", n, err)
	}

	if err := repo.DeleteStream(ctx, "s1"); err != nil {
		t.Fatalf("DeleteStream: %v", err)
	}
	if n, _ := repo.Count(ctx, "s1"); n != 0 {
		t.Fatalf("expected stream to be empty, got %d", n)
	}
	if n, _ := repo.Count(ctx, "s2"); n != 1 {
		t.Fatalf("expected other stream untouched, got %d", n)
	}
}

func TestPageWindow(t *testing.T) {
	msgs := make([]domain.ChatMessage, 5)
	for i := range msgs {
		msgs[i].ID = int64(i)
	}
	if got := pageWindow(msgs, 3, 10); len(got) != 2 || got[0].ID != 3 {
		t.Fatalf("unexpected window %+v", got)
	}
	if got := pageWindow(msgs, 5, 2); len(got) != 0 {
		t.Fatalf("expected empty window, got %+v", got)
	}
}
