package service

import (
	"context"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
)

type ArchiveService interface {
	SaveMessage(ctx context.Context, msg *domain.ChatMessage) error
	RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
	// MessagesByDate accepts a calendar day or an RFC 3339 timestamp.
	MessagesByDate(ctx context.Context, streamID, date string, offset, limit int) (*domain.DatePage, error)
	AvailableDates(ctx context.Context, streamID string) ([]string, error)
	MessagesBefore(ctx context.Context, streamID string, beforeID int64, limit int) ([]domain.ChatMessage, error)
	Count(ctx context.Context, streamID string) (int64, error)
	ClearArchive(ctx context.Context, streamID string) error
}
