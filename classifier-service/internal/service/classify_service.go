package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/classifier"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/history"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/pubsub"
)

type classifyServiceImpl struct {
	classifier     *classifier.Classifier
	history        history.Provider
	publisher      pubsub.Publisher
	historyLimit   int
	historyTimeout time.Duration
}

func NewClassifyService(
	c *classifier.Classifier,
	provider history.Provider,
	publisher pubsub.Publisher,
	historyLimit int,
	historyTimeout time.Duration,
) ClassifyService {
	if historyLimit <= 0 || historyLimit > domain.DefaultHistoryLimit {
		historyLimit = domain.DefaultHistoryLimit
	}
	return &classifyServiceImpl{
		classifier:     c,
		history:        provider,
		publisher:      publisher,
		historyLimit:   historyLimit,
		historyTimeout: historyTimeout,
	}
}

func (s *classifyServiceImpl) ClassifyMessage(ctx context.Context, msg domain.ChatMessage) domain.ChatMessage {
	return msg.WithQuestion(s.ClassifyContent(ctx, msg.UserID, msg.Content))
}

func (s *classifyServiceImpl) ClassifyContent(ctx context.Context, userID string, content any) (isQuestion bool) {
	l := log.Ctx(ctx)

	defer func() {
		if r := recover(); r != nil {
			l.Error().Str(log.FieldUserID, userID).Interface("panic", r).Msg("classification panicked")
			isQuestion = false
		}
	}()

	recent, err := s.recentHistory(ctx, userID)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("history lookup failed, classifying as non-question")
		return false
	}

	return s.classifier.ClassifyValue(content, recent)
}

func (s *classifyServiceImpl) recentHistory(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	if s.history == nil || userID == "" {
		return nil, nil
	}

	if s.historyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.historyTimeout)
		defer cancel()
	}

	recent, err := s.history.Recent(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent history: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return recent, nil
}

func (s *classifyServiceImpl) Ingest(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	classified := s.ClassifyMessage(ctx, msg)

	// History is read before the current message is recorded so a message is
	// never its own context.
	if rec, ok := s.history.(history.Recorder); ok {
		if err := rec.Record(ctx, classified); err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, msg.UserID).Msg("failed to record history")
		}
	}

	if s.publisher == nil {
		return classified, nil
	}

	event, err := pubsub.NewEvent(pubsub.EventClassifiedMessage, classified.StreamID, classified)
	if err != nil {
		return classified, fmt.Errorf("failed to build classified event: %w", err)
	}
	if err := s.publisher.Publish(ctx, pubsub.ClassifiedChannel(classified.StreamID), event); err != nil {
		return classified, fmt.Errorf("failed to publish classified message: %w", err)
	}

	l.Debug().
		Str(log.FieldStreamID, classified.StreamID).
		Str(log.FieldUserID, classified.UserID).
		Bool("is_question", classified.Question()).
		Msg("message classified")

	return classified, nil
}
