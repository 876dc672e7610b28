package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/config"
	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
)

// IDGenerator issues message ids; Cassandra has no auto-increment.
type IDGenerator interface {
	Next() (int64, error)
}

// Schema, one table per query:
//
//	messages_by_stream     ((stream_id), message_id DESC)
//	messages_by_stream_day ((stream_id, day), message_id ASC)
//	messages_by_user       ((user_id), message_id DESC)
//	stream_days            ((stream_id), day DESC)
//	stream_message_counts  ((stream_id), total counter)
const messageColumns = "message_id, stream_id, user_id, username, platform, content, is_question, created_at"

type CassandraMessageRepository struct {
	session *gocql.Session
	ids     IDGenerator
}

func NewCassandraMessageRepository(cfg config.CassandraConfig, ids IDGenerator) (*CassandraMessageRepository, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	return &CassandraMessageRepository{session: session, ids: ids}, nil
}

func (r *CassandraMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID == 0 {
		id, err := r.ids.Next()
		if err != nil {
			return fmt.Errorf("failed to generate message id: %w", err)
		}
		msg.ID = id
	}

	day := msg.Day()
	createdAt := msg.Timestamp.UTC()

	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO messages_by_stream (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.StreamID, msg.UserID, msg.Username, msg.Platform, msg.Content, msg.IsQuestion, createdAt)
	batch.Query(`INSERT INTO messages_by_stream_day (day, `+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		day, msg.ID, msg.StreamID, msg.UserID, msg.Username, msg.Platform, msg.Content, msg.IsQuestion, createdAt)
	batch.Query(`INSERT INTO messages_by_user (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.StreamID, msg.UserID, msg.Username, msg.Platform, msg.Content, msg.IsQuestion, createdAt)
	batch.Query(`INSERT INTO stream_days (stream_id, day) VALUES (?, ?)`, msg.StreamID, day)

	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	// Counters cannot share a batch with regular writes.
	err := r.session.Query(`UPDATE stream_message_counts SET total = total + 1 WHERE stream_id = ?`, msg.StreamID).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}

	return nil
}

func (r *CassandraMessageRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	iter := r.session.Query(
		`SELECT `+messageColumns+` FROM messages_by_user WHERE user_id = ? ORDER BY message_id DESC LIMIT ?`,
		userID, limit,
	).WithContext(ctx).Iter()

	msgs, err := scanMessages(iter)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (r *CassandraMessageRepository) ByDate(ctx context.Context, streamID, day string, offset, limit int) ([]domain.ChatMessage, int, error) {
	var total int
	err := r.session.Query(
		`SELECT COUNT(*) FROM messages_by_stream_day WHERE stream_id = ? AND day = ?`,
		streamID, day,
	).WithContext(ctx).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages by date: %w", err)
	}
	if total == 0 || offset >= total {
		return []domain.ChatMessage{}, total, nil
	}

	// No OFFSET in CQL: read offset+limit rows in clustering order and skip.
	iter := r.session.Query(
		`SELECT `+messageColumns+` FROM messages_by_stream_day WHERE stream_id = ? AND day = ? ORDER BY message_id ASC LIMIT ?`,
		streamID, day, offset+limit,
	).WithContext(ctx).PageSize(limit).Iter()

	msgs, err := scanMessages(iter)
	if err != nil {
		return nil, 0, err
	}
	return pageWindow(msgs, offset, limit), total, nil
}

func (r *CassandraMessageRepository) AvailableDates(ctx context.Context, streamID string) ([]string, error) {
	iter := r.session.Query(
		`SELECT day FROM stream_days WHERE stream_id = ? ORDER BY day DESC`,
		streamID,
	).WithContext(ctx).Iter()

	days := []string{}
	var day string
	for iter.Scan(&day) {
		days = append(days, day)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to get available dates: %w", err)
	}
	return days, nil
}

func (r *CassandraMessageRepository) OlderThan(ctx context.Context, streamID string, beforeID int64, limit int) ([]domain.ChatMessage, error) {
	var q *gocql.Query
	if beforeID > 0 {
		q = r.session.Query(
			`SELECT `+messageColumns+` FROM messages_by_stream WHERE stream_id = ? AND message_id < ? ORDER BY message_id DESC LIMIT ?`,
			streamID, beforeID, limit,
		)
	} else {
		q = r.session.Query(
			`SELECT `+messageColumns+` FROM messages_by_stream WHERE stream_id = ? ORDER BY message_id DESC LIMIT ?`,
			streamID, limit,
		)
	}
	return scanMessages(q.WithContext(ctx).Iter())
}

func (r *CassandraMessageRepository) Count(ctx context.Context, streamID string) (int64, error) {
	var total int64
	err := r.session.Query(
		`SELECT total FROM stream_message_counts WHERE stream_id = ?`,
		streamID,
	).WithContext(ctx).Scan(&total)
	if err == gocql.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return total, nil
}

func (r *CassandraMessageRepository) DeleteStream(ctx context.Context, streamID string) error {
	days, err := r.AvailableDates(ctx, streamID)
	if err != nil {
		return err
	}

	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, day := range days {
		batch.Query(`DELETE FROM messages_by_stream_day WHERE stream_id = ? AND day = ?`, streamID, day)
	}
	batch.Query(`DELETE FROM messages_by_stream WHERE stream_id = ?`, streamID)
	batch.Query(`DELETE FROM stream_days WHERE stream_id = ?`, streamID)
	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to delete stream messages: %w", err)
	}

	// messages_by_user keeps its rows: per-user history outlives a stream's archive.
	err = r.session.Query(`DELETE FROM stream_message_counts WHERE stream_id = ?`, streamID).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to reset message count: %w", err)
	}
	return nil
}

func (r *CassandraMessageRepository) Close() error {
	r.session.Close()
	return nil
}

func scanMessages(iter *gocql.Iter) ([]domain.ChatMessage, error) {
	messages := []domain.ChatMessage{}
	var msg domain.ChatMessage
	var createdAt time.Time

	for iter.Scan(
		&msg.ID,
		&msg.StreamID,
		&msg.UserID,
		&msg.Username,
		&msg.Platform,
		&msg.Content,
		&msg.IsQuestion,
		&createdAt,
	) {
		msg.Timestamp = createdAt.UTC()
		messages = append(messages, msg)
		msg = domain.ChatMessage{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// pageWindow returns msgs[offset:offset+limit], clamped to the slice.
func pageWindow(msgs []domain.ChatMessage, offset, limit int) []domain.ChatMessage {
	if offset >= len(msgs) {
		return []domain.ChatMessage{}
	}
	end := offset + limit
	if end > len(msgs) {
		end = len(msgs)
	}
	return msgs[offset:end]
}

func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ONE":
		return gocql.One
	case "QUORUM":
		return gocql.Quorum
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "ALL":
		return gocql.All
	default:
		return gocql.LocalOne
	}
}
