// Package hub fans classified chat messages out to the viewers watching a
// stream over WebSocket.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shamilramasanov/mellchat-sub003/pkg/log"
	"github.com/shamilramasanov/mellchat-sub003/pkg/pubsub"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/config"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/domain"
)

const fieldClientID = "client_id"

// LiveMessage is the frame pushed to viewers for every classified message.
type LiveMessage struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

type StreamMessage struct {
	StreamID string
	Message  []byte
}

type Hub struct {
	clients    map[string]*Client            // clientID -> client
	streams    map[string]map[string]*Client // streamID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *StreamMessage
	done       chan struct{}
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		streams:    make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *StreamMessage, 256),
		done:       make(chan struct{}),
		config:     cfg,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	l := log.L()
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.streams = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if _, ok := h.streams[client.StreamID]; !ok {
				h.streams[client.StreamID] = make(map[string]*Client)
			}
			h.streams[client.StreamID][client.ID] = client
			h.mu.Unlock()
			l.Debug().Str(fieldClientID, client.ID).Str(log.FieldStreamID, client.StreamID).Msg("viewer joined stream")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				if viewers, ok := h.streams[client.StreamID]; ok {
					delete(viewers, client.ID)
					if len(viewers) == 0 {
						delete(h.streams, client.StreamID)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l.Debug().Str(fieldClientID, client.ID).Str(log.FieldStreamID, client.StreamID).Msg("viewer left stream")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.streams[msg.StreamID] {
				select {
				case client.Send <- msg.Message:
				default:
					// Slow viewer: drop it rather than block the stream.
					go h.removeClient(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds client to its stream. A client registered after the hub
// stopped is closed at once.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) BroadcastToStream(streamID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &StreamMessage{StreamID: streamID, Message: data}:
	case <-h.done:
	}
	return nil
}

func (h *Hub) StreamViewerCount(streamID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[streamID])
}

// Feed forwards classified messages from the event bus to the viewers of
// their stream until ctx is done or the subscription closes.
func (h *Hub) Feed(ctx context.Context, sub pubsub.Subscriber) error {
	events, err := sub.SubscribePattern(ctx, pubsub.PatternClassified)
	if err != nil {
		return err
	}

	l := log.L()
	l.Info().Str(log.FieldChannel, pubsub.PatternClassified).Msg("live feed subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Type != pubsub.EventClassifiedMessage {
				continue
			}

			var msg domain.ChatMessage
			if err := event.UnmarshalPayload(&msg); err != nil {
				l.Warn().Err(err).Str(log.FieldStreamID, event.StreamID).Msg("skipping malformed classified event")
				continue
			}
			if msg.StreamID == "" {
				msg.StreamID = event.StreamID
			}

			if h.StreamViewerCount(event.StreamID) == 0 {
				continue
			}
			if err := h.BroadcastToStream(event.StreamID, LiveMessage{Type: event.Type, Message: msg}); err != nil {
				l.Warn().Err(err).Str(log.FieldStreamID, event.StreamID).Msg("failed to broadcast classified message")
			}
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.Unregister(client)
}
