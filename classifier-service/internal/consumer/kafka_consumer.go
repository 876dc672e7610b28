package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/config"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/service"
	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
)

// Consumer reads raw chat messages from Kafka and feeds them to the
// classifier.
type Consumer struct {
	consumer *kafka.Consumer
	topic    string
	groupID  string
	service  service.ClassifyService
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(cfg config.KafkaConfig, svc service.ClassifyService) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       cfg.Brokers,
		"group.id":                cfg.GroupID,
		"auto.offset.reset":       cfg.AutoOffsetReset,
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
		"session.timeout.ms":      cfg.SessionTimeoutMs,
		"heartbeat.interval.ms":   cfg.HeartbeatIntervalMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		consumer: c,
		topic:    cfg.Topic,
		groupID:  cfg.GroupID,
		service:  svc,
	}, nil
}

// Run polls until ctx is cancelled or Kafka reports a fatal error.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", c.topic, err)
	}

	l := log.L()
	l.Info().Str(log.FieldTopic, c.topic).Str("group", c.groupID).Msg("kafka consumer started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka consumer stopping")
			return nil
		default:
		}

		ev := c.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := handleRecord(ctx, c.service, e.Value); err != nil {
				l.Warn().Err(err).
					Int32(log.FieldPartition, e.TopicPartition.Partition).
					Str(log.FieldOffset, e.TopicPartition.Offset.String()).
					Msg("skipping chat record")
			}
		case kafka.Error:
			l.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka error")
			if e.IsFatal() {
				return fmt.Errorf("fatal kafka error: %w", e)
			}
		default:
			// Offset commits and rebalances need no handling.
		}
	}
}

func handleRecord(ctx context.Context, svc service.ClassifyService, value []byte) error {
	var raw domain.RawMessage
	if err := json.Unmarshal(value, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if err := raw.Validate(); err != nil {
		return err
	}

	msg, ok := raw.ChatMessage(time.Now())
	ctx = log.WithStream(ctx, msg.StreamID)
	if !ok {
		// Non-text content is still chat. It is archived with empty
		// content and never counts as a question.
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldUserID, msg.UserID).Msgf("non-text content %T", raw.Content)
	}
	if _, err := svc.Ingest(ctx, msg); err != nil {
		return fmt.Errorf("failed to ingest message: %w", err)
	}
	return nil
}

// Close closes the Kafka consumer.
func (c *Consumer) Close() error {
	l := log.L()
	l.Info().Msg("closing kafka consumer")
	return c.consumer.Close()
}
