package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
)

// HTTPHistory reads recent history from the archive store.
type HTTPHistory struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPHistory(baseURL string, timeout time.Duration) *HTTPHistory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPHistory{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type recentResponse struct {
	Success  bool                 `json:"success"`
	Messages []domain.ChatMessage `json:"messages"`
	Error    string               `json:"error"`
}

func (h *HTTPHistory) Recent(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	q := url.Values{}
	q.Set("userId", userID)
	q.Set("limit", strconv.Itoa(limit))
	reqURL := fmt.Sprintf("%s/api/v1/messages?%s", h.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body recentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, body.Error)
	}

	if len(body.Messages) > limit {
		body.Messages = body.Messages[len(body.Messages)-limit:]
	}
	return body.Messages, nil
}
