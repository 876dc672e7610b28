package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming conventions for the chat pipeline.
const (
	// Classifier -> archive / viewer channels
	ChannelClassified = "stream:%s:classified"

	// PatternClassified matches the classified channel of every stream.
	PatternClassified = "stream:*:classified"
)

// Event types.
const (
	EventClassifiedMessage = "classified_message"
)

// ClassifiedChannel returns the channel carrying classified messages of a stream.
func ClassifiedChannel(streamID string) string {
	return fmt.Sprintf(ChannelClassified, streamID)
}

// StreamFromChannel extracts the stream id from a classified channel name.
func StreamFromChannel(channel string) (string, bool) {
	rest, ok := strings.CutPrefix(channel, "stream:")
	if !ok {
		return "", false
	}
	streamID, ok := strings.CutSuffix(rest, ":classified")
	if !ok || streamID == "" {
		return "", false
	}
	return streamID, true
}
