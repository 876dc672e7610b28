// Package archive decides whether a viewer joining a stream is offered its
// archived chat and carries out the viewer's choice.
package archive

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/client"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/memo"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/resolver"
)

const (
	defaultClearTimeout = 10 * time.Second
	defaultFetchTimeout = 5 * time.Second
)

// Prompt tells the viewer whether there is archived chat to offer.
type Prompt struct {
	HasArchive   bool  `json:"hasArchive"`
	MessageCount int64 `json:"messageCount"`
}

// AcceptResult is the first archived page shown after the viewer accepts.
// NextDate is the day to load after this one, empty when there is none.
type AcceptResult struct {
	resolver.DatePage
	NextDate string `json:"nextDate,omitempty"`
}

type Flow struct {
	store        client.Store
	dates        *resolver.DateResolver
	memo         *memo.Group[[]string]
	clearTimeout time.Duration
	fetchTimeout time.Duration
	wg           sync.WaitGroup
}

func NewFlow(store client.Store, clearTimeout, fetchTimeout time.Duration) *Flow {
	if clearTimeout <= 0 {
		clearTimeout = defaultClearTimeout
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Flow{
		store:        store,
		dates:        resolver.NewDateResolver(store),
		memo:         memo.NewGroup[[]string](),
		clearTimeout: clearTimeout,
		fetchTimeout: fetchTimeout,
	}
}

// AvailableDates returns the stream's archived days, newest first. The list
// is fetched once per stream and reused until refresh is set or the archive
// is declined.
func (f *Flow) AvailableDates(ctx context.Context, streamID string, refresh bool) ([]string, error) {
	if refresh {
		f.memo.Reset(streamID)
	}
	// The fetch is shared by every concurrent caller, so it must not end
	// with whichever caller happened to start it.
	l := log.Ctx(ctx)
	return f.memo.Do(streamID, func() ([]string, error) {
		fetchCtx, cancel := context.WithTimeout(log.WithLogger(context.Background(), l), f.fetchTimeout)
		defer cancel()
		return f.dates.FetchAvailableDates(fetchCtx, streamID)
	})
}

// ShouldPromptArchive reports whether the stream has archived chat. Store
// failures are logged and reported as no archive so the viewer starts fresh.
func (f *Flow) ShouldPromptArchive(ctx context.Context, streamID string) Prompt {
	var (
		dates []string
		count int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dates, err = f.AvailableDates(gctx, streamID, false)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = f.store.Count(gctx, streamID)
		return err
	})

	if err := g.Wait(); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("archive check failed, starting fresh")
		return Prompt{}
	}

	if len(dates) == 0 {
		return Prompt{}
	}
	return Prompt{HasArchive: true, MessageCount: count}
}

// Accept loads the first archived page, starting from the oldest day.
func (f *Flow) Accept(ctx context.Context, streamID string) AcceptResult {
	dates, err := f.AvailableDates(ctx, streamID, false)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to load archive dates")
		return AcceptResult{DatePage: resolver.DatePage{Messages: []domain.ChatMessage{}, Error: err.Error()}}
	}

	day, ok := resolver.NextDateToLoad(dates, "")
	if !ok {
		return AcceptResult{DatePage: resolver.DatePage{Success: true, Messages: []domain.ChatMessage{}}}
	}

	res := AcceptResult{DatePage: f.dates.FetchByDate(ctx, streamID, day, 0, domain.DefaultPageLimit)}
	if next, ok := resolver.NextDateToLoad(dates, day); ok {
		res.NextDate = next
	}
	return res
}

// Decline clears the stream's archive in the background and returns at
// once. Failures are only logged.
func (f *Flow) Decline(ctx context.Context, streamID string) {
	f.memo.Reset(streamID)

	l := log.Ctx(ctx).With().Str(log.FieldStreamID, streamID).Logger()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		clearCtx, cancel := context.WithTimeout(log.WithLogger(context.Background(), l), f.clearTimeout)
		defer cancel()

		if err := f.store.ClearArchive(clearCtx, streamID); err != nil {
			l.Warn().Err(err).Msg("failed to clear archive")
			return
		}
		// Dates fetched while the clear was running are stale.
		f.memo.Reset(streamID)
		l.Info().Msg("archive cleared")
	}()
}

// Wait blocks until every pending archive clear has finished.
func (f *Flow) Wait() {
	f.wg.Wait()
}
