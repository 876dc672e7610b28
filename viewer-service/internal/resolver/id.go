package resolver

import (
	"context"
	"fmt"

	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/client"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/normalize"
)

// IDPage is the outcome of an id fetch. Messages are newest first and all
// older than the requested id.
type IDPage struct {
	Success  bool                 `json:"success"`
	Messages []domain.ChatMessage `json:"messages"`
	Error    string               `json:"error,omitempty"`
}

type IDResolver struct {
	store client.Store
}

func NewIDResolver(store client.Store) *IDResolver {
	return &IDResolver{store: store}
}

// FetchOlderThan loads up to limit messages with id < beforeID. It never
// panics and never returns an error: failures are reported in the page.
func (r *IDResolver) FetchOlderThan(ctx context.Context, streamID string, beforeID int64, limit int) (page IDPage) {
	if limit <= 0 {
		limit = domain.DefaultPageLimit
	}

	l := log.Ctx(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			l.Error().Interface("panic", rec).Str(log.FieldStreamID, streamID).Msg("fetch older than panicked")
			page = IDPage{Messages: []domain.ChatMessage{}, Error: fmt.Sprintf("internal error: %v", rec)}
		}
	}()

	records, err := r.store.MessagesBefore(ctx, streamID, beforeID, limit)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Int64(log.FieldBeforeID, beforeID).Msg("fetch older than failed")
		return IDPage{Messages: []domain.ChatMessage{}, Error: err.Error()}
	}

	msgs, err := normalize.Decode(normalize.Records(ctx, records))
	if err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("malformed messages from store")
		return IDPage{Messages: []domain.ChatMessage{}, Error: err.Error()}
	}

	// Guard the cursor contract even if the store misbehaves.
	out := msgs[:0]
	for _, m := range msgs {
		if beforeID <= 0 || m.ID < beforeID {
			out = append(out, m)
		}
	}

	return IDPage{Success: true, Messages: out}
}
