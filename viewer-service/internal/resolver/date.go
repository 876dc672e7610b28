// Package resolver fetches older chat history from the archive store, either
// one calendar day at a time or by message id.
package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/client"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/normalize"
)

var ErrInvalidDate = errors.New("date must be YYYY-MM-DD or an ISO timestamp")

// DatePage is the outcome of a date fetch. On failure Success is false and
// Error describes the problem; Messages is then empty.
type DatePage struct {
	Success  bool                 `json:"success"`
	Date     string               `json:"date,omitempty"`
	Messages []domain.ChatMessage `json:"messages"`
	Total    int                  `json:"total"`
	Error    string               `json:"error,omitempty"`
}

func failedDatePage(date string, err error) DatePage {
	return DatePage{Date: date, Messages: []domain.ChatMessage{}, Error: err.Error()}
}

type DateResolver struct {
	store client.Store
}

func NewDateResolver(store client.Store) *DateResolver {
	return &DateResolver{store: store}
}

// FetchByDate loads one page of a stream's messages on date. date may be a
// calendar day or a full ISO timestamp; only its day is sent to the store.
func (r *DateResolver) FetchByDate(ctx context.Context, streamID, date string, offset, limit int) DatePage {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = domain.DefaultPageLimit
	}

	day, err := NormalizeDate(date)
	if err != nil {
		return failedDatePage(date, err)
	}

	l := log.Ctx(ctx)
	records, total, err := r.store.MessagesByDate(ctx, streamID, day, offset, limit)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Str(log.FieldDate, day).Msg("fetch by date failed")
		return failedDatePage(day, err)
	}

	msgs, err := normalize.Decode(normalize.Records(ctx, records))
	if err != nil {
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Str(log.FieldDate, day).Msg("malformed messages from store")
		return failedDatePage(day, err)
	}

	return DatePage{Success: true, Date: day, Messages: msgs, Total: total}
}

// FetchAvailableDates returns the days with archived messages, newest first.
func (r *DateResolver) FetchAvailableDates(ctx context.Context, streamID string) ([]string, error) {
	dates, err := r.store.AvailableDates(ctx, streamID)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if day, err := NormalizeDate(d); err == nil {
			out = append(out, day)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// NextDateToLoad picks the day to load after current from available, which
// is ordered newest first. With no current day it starts at the oldest.
// It reports false when there is nothing older to load.
func NextDateToLoad(available []string, current string) (string, bool) {
	if len(available) == 0 {
		return "", false
	}
	if current == "" {
		return available[len(available)-1], true
	}

	for i, d := range available {
		if d != current {
			continue
		}
		if i == len(available)-1 {
			return "", false
		}
		return available[i+1], true
	}
	return "", false
}

// FormatForDisplay labels a day relative to now: "Today", "Yesterday", or
// DD.MM for anything older. Unparseable input is returned unchanged.
func FormatForDisplay(date string, now time.Time) string {
	day, err := time.ParseInLocation(domain.DateLayout, date, now.Location())
	if err != nil {
		return date
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("02.01")
	}
}

// NormalizeDate reduces a day or an ISO timestamp to its YYYY-MM-DD prefix.
// Any zone offset is ignored rather than applied, so the day never shifts.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(domain.DateLayout) {
		return "", ErrInvalidDate
	}

	day, rest := s[:len(domain.DateLayout)], s[len(domain.DateLayout):]
	if rest != "" && rest[0] != 'T' && rest[0] != ' ' {
		return "", ErrInvalidDate
	}
	if _, err := time.Parse(domain.DateLayout, day); err != nil {
		return "", ErrInvalidDate
	}
	return day, nil
}
