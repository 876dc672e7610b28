package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StoreClient talks to archive-service over HTTP.
type StoreClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStoreClient creates a client. Timeouts surface as ordinary errors.
func NewStoreClient(baseURL string, timeout time.Duration) *StoreClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StoreClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// envelope is the store's response wrapper. Numbers are kept as
// json.Number so message ids survive untouched.
type envelope struct {
	Success  bool        `json:"success"`
	Error    string      `json:"error"`
	Messages []Record    `json:"messages"`
	Dates    []string    `json:"dates"`
	Total    json.Number `json:"total"`
	Count    json.Number `json:"count"`
}

func (c *StoreClient) MessagesByDate(ctx context.Context, streamID, date string, offset, limit int) ([]Record, int, error) {
	q := url.Values{}
	q.Set("streamId", streamID)
	q.Set("date", date)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	env, err := c.do(ctx, http.MethodGet, "/api/v1/date-messages", q)
	if err != nil {
		return nil, 0, err
	}

	total := len(env.Messages)
	if env.Total != "" {
		n, err := env.Total.Int64()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid total %q", ErrStore, env.Total)
		}
		total = int(n)
	}
	return nonNil(env.Messages), total, nil
}

func (c *StoreClient) AvailableDates(ctx context.Context, streamID string) ([]string, error) {
	q := url.Values{}
	q.Set("streamId", streamID)

	env, err := c.do(ctx, http.MethodGet, "/api/v1/available-dates", q)
	if err != nil {
		return nil, err
	}
	if env.Dates == nil {
		return []string{}, nil
	}
	return env.Dates, nil
}

func (c *StoreClient) MessagesBefore(ctx context.Context, streamID string, beforeID int64, limit int) ([]Record, error) {
	q := url.Values{}
	q.Set("streamId", streamID)
	q.Set("beforeId", strconv.FormatInt(beforeID, 10))
	q.Set("limit", strconv.Itoa(limit))

	env, err := c.do(ctx, http.MethodGet, "/api/v1/pagination-messages", q)
	if err != nil {
		return nil, err
	}
	return nonNil(env.Messages), nil
}

func (c *StoreClient) Count(ctx context.Context, streamID string) (int64, error) {
	q := url.Values{}
	q.Set("streamId", streamID)

	env, err := c.do(ctx, http.MethodGet, "/api/v1/archive/count", q)
	if err != nil {
		return 0, err
	}
	if env.Count == "" {
		return 0, nil
	}
	n, err := env.Count.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: invalid count %q", ErrStore, env.Count)
	}
	return n, nil
}

func (c *StoreClient) ClearArchive(ctx context.Context, streamID string) error {
	q := url.Values{}
	q.Set("streamId", streamID)

	_, err := c.do(ctx, http.MethodDelete, "/api/v1/archive", q)
	return err
}

func (c *StoreClient) do(ctx context.Context, method, path string, q url.Values) (*envelope, error) {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrStore, err)
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	decodeErr := dec.Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && env.Error != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrStore, resp.StatusCode, env.Error)
		}
		return nil, fmt.Errorf("%w: status %d", ErrStore, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrStore, decodeErr)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, fmt.Errorf("%w: %s", ErrStore, msg)
	}

	return &env, nil
}

func nonNil(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	return records
}
