package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/service"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/pubsub"
)

var errIncomplete = errors.New("message without stream or user")

// PersistSubscriber stores every classified message published on the bus.
type PersistSubscriber struct {
	subscriber pubsub.Subscriber
	service    service.ArchiveService
}

func NewPersistSubscriber(sub pubsub.Subscriber, svc service.ArchiveService) *PersistSubscriber {
	return &PersistSubscriber{
		subscriber: sub,
		service:    svc,
	}
}

// Run blocks until ctx is cancelled or the subscription closes.
func (p *PersistSubscriber) Run(ctx context.Context) error {
	events, err := p.subscriber.SubscribePattern(ctx, pubsub.PatternClassified)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pubsub.PatternClassified, err)
	}

	l := log.L()
	l.Info().Str(log.FieldChannel, pubsub.PatternClassified).Msg("persist subscriber started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("persist subscriber stopping")
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.handle(ctx, event); err != nil {
				l.Warn().Err(err).Str(log.FieldStreamID, event.StreamID).Msg("failed to persist classified message")
			}
		}
	}
}

func (p *PersistSubscriber) handle(ctx context.Context, event *pubsub.Event) error {
	if event.Type != pubsub.EventClassifiedMessage {
		return nil
	}

	var msg domain.ChatMessage
	if err := event.UnmarshalPayload(&msg); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if msg.StreamID == "" {
		msg.StreamID = event.StreamID
	}
	if msg.StreamID == "" || msg.UserID == "" {
		return errIncomplete
	}

	// Ids are assigned by storage.
	msg.ID = 0
	return p.service.SaveMessage(ctx, &msg)
}
