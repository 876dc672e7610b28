package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMessagesByDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/v1/date-messages" || q.Get("streamId") != "s1" || q.Get("date") != "2026-03-01" ||
			q.Get("offset") != "20" || q.Get("limit") != "10" {
			t.Fatalf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"success":true,"total":42,"messages":[{"id":9007199254740993,"streamId":"s1","content":"hi"}]}`))
	}))
	defer srv.Close()

	records, total, err := NewStoreClient(srv.URL, time.Second).MessagesByDate(context.Background(), "s1", "2026-03-01", 20, 10)
	if err != nil {
		t.Fatalf("MessagesByDate: %v", err)
	}
	if total != 42 || len(records) != 1 {
		t.Fatalf("unexpected result total=%d records=%v", total, records)
	}
	if id, ok := records[0]["id"].(json.Number); !ok || id.String() != "9007199254740993" {
		t.Fatalf("expected id kept as exact json.Number, got %#v", records[0]["id"])
	}
}

func TestMessagesBeforeAndDates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/pagination-messages":
			if r.URL.Query().Get("beforeId") != "100" {
				t.Fatalf("unexpected beforeId %q", r.URL.Query().Get("beforeId"))
			}
			_, _ = w.Write([]byte(`{"success":true,"messages":[{"id":99,"stream_id":"s1"}]}`))
		case "/api/v1/available-dates":
			_, _ = w.Write([]byte(`{"success":true,"dates":["2026-03-02","2026-03-01"]}`))
		case "/api/v1/archive/count":
			_, _ = w.Write([]byte(`{"success":true,"count":17}`))
		case "/api/v1/archive":
			if r.Method != http.MethodDelete {
				t.Fatalf("expected DELETE, got %s", r.Method)
			}
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewStoreClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	records, err := c.MessagesBefore(ctx, "s1", 100, 20)
	if err != nil || len(records) != 1 || records[0]["stream_id"] != "s1" {
		t.Fatalf("unexpected records %v err %v", records, err)
	}

	dates, err := c.AvailableDates(ctx, "s1")
	if err != nil || len(dates) != 2 || dates[0] != "2026-03-02" {
		t.Fatalf("unexpected dates %v err %v", dates, err)
	}

	n, err := c.Count(ctx, "s1")
	if err != nil || n != 17 {
		t.Fatalf("unexpected count %d err %v", n, err)
	}

	if err := c.ClearArchive(ctx, "s1"); err != nil {
		t.Fatalf("ClearArchive: %v", err)
	}
}

func TestStoreFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "5xx", handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{name: "4xx with envelope", handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"error":"streamId is required"}`))
		}},
		{name: "success false", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false}`))
		}},
		{name: "garbage", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
		{name: "bad total", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"total":1.5,"messages":[]}`))
		}},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(tc.handler)
		_, _, err := NewStoreClient(srv.URL, time.Second).MessagesByDate(context.Background(), "s1", "2026-03-01", 0, 20)
		srv.Close()
		if !errors.Is(err, ErrStore) {
			t.Fatalf("%s: expected ErrStore, got %v", tc.name, err)
		}
	}
}

func TestStoreUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	if _, err := NewStoreClient(addr, time.Second).AvailableDates(context.Background(), "s1"); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestStoreCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStoreClient(srv.URL, time.Second).MessagesBefore(ctx, "s1", 1, 20); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore for cancelled request, got %v", err)
	}
}
