package domain

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for date cursors.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// ChatMessage is a persisted chat message. ID is assigned on save and grows
// monotonically within a stream.
type ChatMessage struct {
	ID         int64     `json:"id"`
	StreamID   string    `json:"streamId"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Platform   string    `json:"platform"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsQuestion bool      `json:"isQuestion"`
}

// Day returns the UTC calendar day the message belongs to.
func (m ChatMessage) Day() string {
	return DayOf(m.Timestamp)
}

// LegacyMessage is the shape served by the id pagination endpoint, which
// still names the stream field stream_id.
type LegacyMessage struct {
	ID         int64     `json:"id"`
	StreamID   string    `json:"stream_id"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Platform   string    `json:"platform"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsQuestion bool      `json:"isQuestion"`
}

func (m ChatMessage) Legacy() LegacyMessage {
	return LegacyMessage(m)
}

// DatePage is one page of a stream's messages on a given day.
type DatePage struct {
	Messages []ChatMessage `json:"messages"`
	Total    int           `json:"total"`
}

// DayOf formats t as a UTC calendar day.
func DayOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDay accepts a bare calendar day or an ISO timestamp and returns its
// YYYY-MM-DD prefix. The zone is never applied: "2026-03-14T23:30:00-02:00"
// is still the 14th.
func ParseDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return "", ErrInvalidDate
	}

	day, rest := s[:len(DateLayout)], s[len(DateLayout):]
	if rest != "" && rest[0] != 'T' && rest[0] != ' ' {
		return "", ErrInvalidDate
	}
	if _, err := time.Parse(DateLayout, day); err != nil {
		return "", ErrInvalidDate
	}
	return day, nil
}
