package history

import (
	"context"
	"errors"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("history unavailable")

// Provider returns a user's most recent messages, oldest first.
type Provider interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
}

// Recorder is implemented by providers that keep their own copy of history.
type Recorder interface {
	Record(ctx context.Context, msg domain.ChatMessage) error
}
