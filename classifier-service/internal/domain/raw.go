package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingStream = errors.New("stream id is required")
	ErrMissingUser   = errors.New("user id is required")
)

// RawMessage is a chat record as emitted by a platform listener. Older
// listeners write stream_id instead of streamId, and content is not
// guaranteed to be text.
type RawMessage struct {
	StreamID       string     `json:"streamId"`
	LegacyStreamID string     `json:"stream_id"`
	UserID         string     `json:"userId"`
	Username       string     `json:"username"`
	Platform       string     `json:"platform"`
	Content        any        `json:"content"`
	Timestamp      *time.Time `json:"timestamp"`
}

// Stream returns the canonical stream id.
func (r RawMessage) Stream() string {
	if s := strings.TrimSpace(r.StreamID); s != "" {
		return s
	}
	return strings.TrimSpace(r.LegacyStreamID)
}

// Validate checks the fields every message needs regardless of content.
func (r RawMessage) Validate() error {
	if r.Stream() == "" {
		return ErrMissingStream
	}
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUser
	}
	return nil
}

// ChatMessage converts the record. ok is false when content is not text.
func (r RawMessage) ChatMessage(now time.Time) (msg ChatMessage, ok bool) {
	text, ok := r.Content.(string)
	ts := now.UTC()
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		ts = r.Timestamp.UTC()
	}
	return ChatMessage{
		StreamID:  r.Stream(),
		UserID:    r.UserID,
		Username:  r.Username,
		Platform:  r.Platform,
		Content:   text,
		Timestamp: ts,
	}, ok
}
