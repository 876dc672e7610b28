package repository

import (
	"context"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
)

// MessageRepository stores chat messages and answers the archive queries.
//
// Days are UTC calendar days in domain.DateLayout.
type MessageRepository interface {
	// Save persists msg, assigning msg.ID when it is zero.
	Save(ctx context.Context, msg *domain.ChatMessage) error

	// RecentByUser returns up to limit of the user's newest messages, oldest first.
	RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)

	// ByDate returns a page of the stream's messages on day in chronological
	// order, along with the number of messages that day.
	ByDate(ctx context.Context, streamID, day string, offset, limit int) ([]domain.ChatMessage, int, error)

	// AvailableDates lists days with at least one message, newest first.
	AvailableDates(ctx context.Context, streamID string) ([]string, error)

	// OlderThan returns up to limit messages with id < beforeID, newest
	// first. A non-positive beforeID starts from the newest message.
	OlderThan(ctx context.Context, streamID string, beforeID int64, limit int) ([]domain.ChatMessage, error)

	Count(ctx context.Context, streamID string) (int64, error)

	// DeleteStream removes every message of the stream.
	DeleteStream(ctx context.Context, streamID string) error

	Close() error
}

func reverse(msgs []domain.ChatMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
