package service

import (
	"context"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
)

type ClassifyService interface {
	// ClassifyMessage returns msg with IsQuestion set. It never fails: any
	// problem with history or classification yields a non-question.
	ClassifyMessage(ctx context.Context, msg domain.ChatMessage) domain.ChatMessage
	// ClassifyContent classifies a loosely typed content value for a user.
	ClassifyContent(ctx context.Context, userID string, content any) bool
	// Ingest classifies msg, records it in history and publishes it to the
	// stream's classified channel.
	Ingest(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
}
