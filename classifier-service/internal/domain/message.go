package domain

import "time"

// Supported chat platforms.
const (
	PlatformYouTube = "youtube"
	PlatformTwitch  = "twitch"
	PlatformKick    = "kick"
)

// DefaultHistoryLimit caps the recent-history window consulted per message.
const DefaultHistoryLimit = 5

// ChatMessage is a chat record as produced by the platform listeners and
// enriched by the classifier. ID is assigned by storage and is zero for
// messages that have not been persisted yet.
type ChatMessage struct {
	ID         int64     `json:"id,omitempty"`
	StreamID   string    `json:"streamId"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username,omitempty"`
	Platform   string    `json:"platform,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsQuestion *bool     `json:"isQuestion,omitempty"`
}

// WithQuestion returns a copy of m carrying the classification result.
func (m ChatMessage) WithQuestion(isQuestion bool) ChatMessage {
	v := isQuestion
	m.IsQuestion = &v
	return m
}

// Question reports the classification result; unclassified messages are
// not questions.
func (m ChatMessage) Question() bool {
	return m.IsQuestion != nil && *m.IsQuestion
}
