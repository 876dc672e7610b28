package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/domain"
	"github.com/shamilramasanov/mellchat-sub003/pkg/database"
)

// messageRecord is the SQL row. Day is denormalized so that date queries
// stay index-only.
type messageRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	StreamID   string    `gorm:"size:191;not null;index:idx_messages_stream_day,priority:1"`
	Day        string    `gorm:"size:10;not null;index:idx_messages_stream_day,priority:2"`
	UserID     string    `gorm:"size:191;not null;index"`
	Username   string    `gorm:"size:191"`
	Platform   string    `gorm:"size:32"`
	Content    string    `gorm:"type:text"`
	IsQuestion bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (messageRecord) TableName() string {
	return "chat_messages"
}

func toRecord(m *domain.ChatMessage) messageRecord {
	return messageRecord{
		ID:         m.ID,
		StreamID:   m.StreamID,
		Day:        m.Day(),
		UserID:     m.UserID,
		Username:   m.Username,
		Platform:   m.Platform,
		Content:    m.Content,
		IsQuestion: m.IsQuestion,
		CreatedAt:  m.Timestamp.UTC(),
	}
}

func (r messageRecord) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:         r.ID,
		StreamID:   r.StreamID,
		UserID:     r.UserID,
		Username:   r.Username,
		Platform:   r.Platform,
		Content:    r.Content,
		Timestamp:  r.CreatedAt.UTC(),
		IsQuestion: r.IsQuestion,
	}
}

func toDomain(records []messageRecord) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out
}

type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository opens the database and migrates the schema.
func NewGormMessageRepository(cfg *database.Config) (*GormMessageRepository, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	return NewGormMessageRepositoryFromDB(db)
}

func NewGormMessageRepositoryFromDB(db *gorm.DB) (*GormMessageRepository, error) {
	if err := database.AutoMigrate(db, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate messages: %w", err)
	}
	return &GormMessageRepository{db: db}, nil
}

func (r *GormMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) error {
	rec := toRecord(msg)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	msg.ID = rec.ID
	return nil
}

func (r *GormMessageRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	var records []messageRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}

	msgs := toDomain(records)
	reverse(msgs)
	return msgs, nil
}

func (r *GormMessageRepository) ByDate(ctx context.Context, streamID, day string, offset, limit int) ([]domain.ChatMessage, int, error) {
	scope := r.db.WithContext(ctx).Model(&messageRecord{}).
		Where("stream_id = ? AND day = ?", streamID, day)

	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages by date: %w", err)
	}
	if total == 0 || offset >= int(total) {
		return []domain.ChatMessage{}, int(total), nil
	}

	var records []messageRecord
	err := scope.Session(&gorm.Session{}).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get messages by date: %w", err)
	}

	return toDomain(records), int(total), nil
}

func (r *GormMessageRepository) AvailableDates(ctx context.Context, streamID string) ([]string, error) {
	var days []string
	err := r.db.WithContext(ctx).Model(&messageRecord{}).
		Where("stream_id = ?", streamID).
		Distinct().
		Order("day DESC").
		Pluck("day", &days).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get available dates: %w", err)
	}
	if days == nil {
		days = []string{}
	}
	return days, nil
}

func (r *GormMessageRepository) OlderThan(ctx context.Context, streamID string, beforeID int64, limit int) ([]domain.ChatMessage, error) {
	q := r.db.WithContext(ctx).Where("stream_id = ?", streamID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var records []messageRecord
	if err := q.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get older messages: %w", err)
	}
	return toDomain(records), nil
}

func (r *GormMessageRepository) Count(ctx context.Context, streamID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&messageRecord{}).
		Where("stream_id = ?", streamID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (r *GormMessageRepository) DeleteStream(ctx context.Context, streamID string) error {
	err := r.db.WithContext(ctx).
		Where("stream_id = ?", streamID).
		Delete(&messageRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete stream messages: %w", err)
	}
	return nil
}

func (r *GormMessageRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
