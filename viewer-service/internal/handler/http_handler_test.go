package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/archive"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/client"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/config"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/hub"
	"github.com/shamilramasanov/mellchat-sub003/viewer-service/internal/resolver"
)

var testWSConfig = config.WebSocketConfig{
	PingInterval:   time.Second,
	PongWait:       2 * time.Second,
	WriteWait:      time.Second,
	MaxMessageSize: 1024,
	SendBuffer:     8,
}

type fakeStore struct {
	mu      sync.Mutex
	dates   []string
	count   int64
	byDate  map[string][]client.Record
	older   []client.Record
	err     error
	cleared chan string
}

func (s *fakeStore) MessagesByDate(ctx context.Context, streamID, date string, offset, limit int) ([]client.Record, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	recs := s.byDate[date]
	return recs, len(recs), nil
}

func (s *fakeStore) AvailableDates(ctx context.Context, streamID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dates, s.err
}

func (s *fakeStore) MessagesBefore(ctx context.Context, streamID string, beforeID int64, limit int) ([]client.Record, error) {
	return s.older, s.err
}

func (s *fakeStore) Count(ctx context.Context, streamID string) (int64, error) {
	return s.count, s.err
}

func (s *fakeStore) ClearArchive(ctx context.Context, streamID string) error {
	s.mu.Lock()
	s.dates = nil
	s.mu.Unlock()
	if s.cleared != nil {
		s.cleared <- streamID
	}
	return s.err
}

func setup(t *testing.T, store *fakeStore, h *hub.Hub) (*gin.Engine, *archive.Flow) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	flow := archive.NewFlow(store, time.Second, time.Second)
	t.Cleanup(flow.Wait)

	handler := NewHTTPHandler(flow, resolver.NewDateResolver(store), resolver.NewIDResolver(store), h, testWSConfig)
	handler.now = func() time.Time { return time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC) }

	r := gin.New()
	handler.RegisterRoutes(r)
	return r, flow
}

func do(t *testing.T, r *gin.Engine, method, target string) (int, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: invalid json %q: %v", method, target, w.Body.String(), err)
	}
	return w.Code, body
}

func sampleStore() *fakeStore {
	return &fakeStore{
		dates: []string{"2026-03-03", "2026-03-02", "2026-03-01"},
		count: 3,
		byDate: map[string][]client.Record{
			"2026-03-01": {{"id": json.Number("1"), "streamId": "s1", "userId": "u1", "content": "first"}},
			"2026-03-02": {{"id": json.Number("2"), "streamId": "s1", "userId": "u1", "content": "second"}},
		},
		older: []client.Record{
			{"id": json.Number("2"), "stream_id": "s1", "userId": "u1", "content": "second"},
			{"id": json.Number("1"), "stream_id": "s1", "userId": "u1", "content": "first"},
		},
	}
}

func TestArchivePrompt(t *testing.T) {
	r, _ := setup(t, sampleStore(), nil)

	code, body := do(t, r, http.MethodGet, "/api/v1/streams/s1/archive")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if string(body["hasArchive"]) != "true" || string(body["messageCount"]) != "3" {
		t.Fatalf("unexpected prompt %v", body)
	}
}

func TestArchivePromptDegrades(t *testing.T) {
	r, _ := setup(t, &fakeStore{err: client.ErrStore}, nil)

	code, body := do(t, r, http.MethodGet, "/api/v1/streams/s1/archive")
	if code != http.StatusOK || string(body["hasArchive"]) != "false" {
		t.Fatalf("expected fresh start, got %d %v", code, body)
	}
}

func TestAcceptArchive(t *testing.T) {
	r, _ := setup(t, sampleStore(), nil)

	code, body := do(t, r, http.MethodPost, "/api/v1/streams/s1/archive/accept")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", code, body)
	}
	if string(body["date"]) != `"2026-03-01"` {
		t.Fatalf("expected oldest day, got %s", body["date"])
	}
	var msgs []map[string]any
	if err := json.Unmarshal(body["messages"], &msgs); err != nil || len(msgs) != 1 || msgs[0]["content"] != "first" {
		t.Fatalf("unexpected messages %s", body["messages"])
	}
}

func TestDeclineArchive(t *testing.T) {
	store := sampleStore()
	store.cleared = make(chan string, 1)
	r, _ := setup(t, store, nil)

	code, _ := do(t, r, http.MethodDelete, "/api/v1/streams/s1/archive")
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}

	select {
	case id := <-store.cleared:
		if id != "s1" {
			t.Fatalf("cleared wrong stream %q", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("archive was not cleared")
	}
}

func TestGetDatesWithLabels(t *testing.T) {
	r, _ := setup(t, sampleStore(), nil)

	code, body := do(t, r, http.MethodGet, "/api/v1/streams/s1/dates?refresh=true")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	var labels []DateLabel
	if err := json.Unmarshal(body["dates"], &labels); err != nil {
		t.Fatalf("decode dates: %v", err)
	}
	want := []DateLabel{
		{Date: "2026-03-03", Label: "Today"},
		{Date: "2026-03-02", Label: "Yesterday"},
		{Date: "2026-03-01", Label: "01.03"},
	}
	if len(labels) != len(want) {
		t.Fatalf("expected %v, got %v", want, labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, labels)
		}
	}
}

func TestGetDatesUpstreamFailure(t *testing.T) {
	r, _ := setup(t, &fakeStore{err: client.ErrStore}, nil)

	code, body := do(t, r, http.MethodGet, "/api/v1/streams/s1/dates")
	if code != http.StatusBadGateway || string(body["success"]) != "false" {
		t.Fatalf("expected 502 failure, got %d %v", code, body)
	}
}

func TestGetNextDate(t *testing.T) {
	r, _ := setup(t, sampleStore(), nil)

	cases := []struct {
		query   string
		next    string
		hasMore string
	}{
		{query: "", next: `"2026-03-01"`, hasMore: "true"},
		{query: "?current=2026-03-03", next: `"2026-03-02"`, hasMore: "true"},
		{query: "?current=2026-03-01", next: `""`, hasMore: "false"},
		{query: "?current=2025-01-01", next: `""`, hasMore: "false"},
	}
	for _, tc := range cases {
		code, body := do(t, r, http.MethodGet, "/api/v1/streams/s1/dates/next"+tc.query)
		if code != http.StatusOK || string(body["next"]) != tc.next || string(body["hasMore"]) != tc.hasMore {
			t.Fatalf("%q: got %d %v", tc.query, code, body)
		}
	}

	if code, _ := do(t, r, http.MethodGet, "/api/v1/streams/s1/dates/next?current=yesterday"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad current, got %d", code)
	}
}

func TestGetMessagesByDate(t *testing.T) {
	r, _ := setup(t, sampleStore(), nil)

	code, body := do(t, r, http.MethodGet, "/api/v1/streams/s1/messages/by-date?date=2026-03-02T08:00:00Z")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", code, body)
	}
	if string(body["date"]) != `"2026-03-02"` || string(body["total"]) != "1" {
		t.Fatalf("unexpected page %v", body)
	}

	for _, target := range []string{
		"/api/v1/streams/s1/messages/by-date",
		"/api/v1/streams/s1/messages/by-date?date=03/02/2026",
		"/api/v1/streams/s1/messages/by-date?date=2026-03-02&offset=-1",
		"/api/v1/streams/s1/messages/by-date?date=2026-03-02&limit=0",
	} {
		if code, _ := do(t, r, http.MethodGet, target); code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, code)
		}
	}
}

func TestGetOlderMessages(t *testing.T) {
	r, _ := setup(t, sampleStore(), nil)

	code, body := do(t, r, http.MethodGet, "/api/v1/streams/s1/messages/older?before_id=3&limit=500")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", code, body)
	}

	var msgs []map[string]any
	if err := json.Unmarshal(body["messages"], &msgs); err != nil || len(msgs) != 2 {
		t.Fatalf("unexpected messages %s", body["messages"])
	}
	for _, m := range msgs {
		if m["streamId"] != "s1" {
			t.Fatalf("expected normalized streamId, got %v", m)
		}
		if _, ok := m["stream_id"]; ok {
			t.Fatalf("legacy field leaked into response: %v", m)
		}
	}

	if code, _ := do(t, r, http.MethodGet, "/api/v1/streams/s1/messages/older?before_id=abc"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad before_id, got %d", code)
	}
}

func TestGetOlderMessagesUpstreamFailure(t *testing.T) {
	r, _ := setup(t, &fakeStore{err: client.ErrStore}, nil)

	code, body := do(t, r, http.MethodGet, "/api/v1/streams/s1/messages/older?before_id=10")
	if code != http.StatusBadGateway || string(body["success"]) != "false" {
		t.Fatalf("expected 502 failure, got %d %v", code, body)
	}
}

func TestLiveDisabled(t *testing.T) {
	r, _ := setup(t, sampleStore(), nil)

	if code, _ := do(t, r, http.MethodGet, "/api/v1/streams/s1/live"); code != http.StatusNotFound {
		t.Fatalf("expected 404 without hub, got %d", code)
	}
}

func TestLiveFeed(t *testing.T) {
	h := hub.NewHub(testWSConfig)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	r, _ := setup(t, sampleStore(), h)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/streams/s1/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for h.StreamViewerCount("s1") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("viewer never joined")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := h.BroadcastToStream("s1", map[string]string{"type": "classified_message"}); err != nil {
		t.Fatalf("BroadcastToStream: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"type":"classified_message"}` {
		t.Fatalf("unexpected frame %s", data)
	}
}

func TestHealthCheck(t *testing.T) {
	r, _ := setup(t, sampleStore(), nil)

	code, body := do(t, r, http.MethodGet, "/health")
	if code != http.StatusOK || string(body["status"]) != `"ok"` {
		t.Fatalf("unexpected health %d %v", code, body)
	}
}
