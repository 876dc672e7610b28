package client

import (
	"context"
	"errors"
)

// ErrStore is wrapped by every failure reported by the archive store.
var ErrStore = errors.New("archive store failure")

// Record is a message as decoded from the store, before normalization.
type Record = map[string]any

// Store is the archive store contract.
type Store interface {
	MessagesByDate(ctx context.Context, streamID, date string, offset, limit int) ([]Record, int, error)
	AvailableDates(ctx context.Context, streamID string) ([]string, error)
	MessagesBefore(ctx context.Context, streamID string, beforeID int64, limit int) ([]Record, error)
	Count(ctx context.Context, streamID string) (int64, error)
	ClearArchive(ctx context.Context, streamID string) error
}
