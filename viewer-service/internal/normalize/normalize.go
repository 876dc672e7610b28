// Package normalize reconciles the two stream id field names the archive
// store emits and turns store records into typed messages.
//
// The date endpoint names the field streamId while the id pagination
// endpoint still uses stream_id. After Record, streamId is always the
// field to read.
package normalize

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"

	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/domain"
)

const (
	FieldStreamID       = "streamId"
	FieldLegacyStreamID = "stream_id"
)

// Record returns a copy of rec with the canonical streamId set. A non-empty
// streamId wins over stream_id; a conflict between the two is logged. No
// other field is changed, and applying Record twice gives the same result.
func Record(rec map[string]any) map[string]any {
	l := log.L()
	return record(&l, rec)
}

// Records normalizes every record, logging through the context logger.
func Records(ctx context.Context, recs []map[string]any) []map[string]any {
	l := log.Ctx(ctx)
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, record(&l, rec))
	}
	return out
}

func record(l *zerolog.Logger, rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}

	camel, hasCamel := nonEmptyString(rec[FieldStreamID])
	legacy, hasLegacy := nonEmptyString(rec[FieldLegacyStreamID])

	switch {
	case hasCamel:
		if hasLegacy && legacy != camel {
			l.Warn().
				Str(FieldStreamID, camel).
				Str(FieldLegacyStreamID, legacy).
				Msg("conflicting stream ids in record, keeping streamId")
		}
	case hasLegacy:
		out[FieldStreamID] = legacy
	}

	return out
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

// Decode converts normalized records into messages.
func Decode(recs []map[string]any) ([]domain.ChatMessage, error) {
	out := make([]domain.ChatMessage, 0, len(recs))
	for i, rec := range recs {
		var msg domain.ChatMessage
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           &msg,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder: %w", err)
		}
		if err := dec.Decode(rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}
