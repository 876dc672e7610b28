package domain

import "time"

// ChatMessage is a historical chat message as shown to a viewer.
type ChatMessage struct {
	ID         int64     `json:"id"`
	StreamID   string    `json:"streamId"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username,omitempty"`
	Platform   string    `json:"platform,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsQuestion bool      `json:"isQuestion"`
}

// Pagination defaults.
const (
	DefaultPageLimit = 20
	DateLayout       = "2006-01-02"
)
