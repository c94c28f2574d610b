package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sprachtrainer-gateway/internal/domain"
	"sprachtrainer-gateway/internal/infra/metrics"
)

const defaultTimeout = 60 * time.Second

// Client вызывает HTTP API тренажёра (агентного бекенда).
type Client struct {
	http    *http.Client
	baseURL string
	agentID string
}

var _ domain.Trainer = (*Client)(nil)

// NewClient создаёт клиента тренажёра.
func NewClient(baseURL, agentID string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout + 5*time.Second},
		baseURL: baseURL,
		agentID: agentID,
	}
}

type runRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

type runResponse struct {
	Content string `json:"content"`
}

// Reply отправляет сообщение в рамках сессии и возвращает ответ агента.
// Содержимое ответа непрозрачно для шлюза и передаётся дальше как есть.
func (c *Client) Reply(ctx context.Context, sessionKey, message string) (string, error) {
	payload, err := json.Marshal(runRequest{Message: message, SessionID: sessionKey})
	if err != nil {
		return "", fmt.Errorf("trainer: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/agents/%s/runs", c.baseURL, url.PathEscape(c.agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("trainer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("trainer", "run", c.agentID, start, err)
		return "", fmt.Errorf("trainer: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("trainer", "run", c.agentID, start, err)
		return "", fmt.Errorf("trainer: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("trainer: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("trainer", "run", c.agentID, start, err)
		return "", err
	}
	var run runResponse
	if err := json.Unmarshal(body, &run); err != nil {
		metrics.ObserveNetworkRequest("trainer", "run", c.agentID, start, err)
		return "", fmt.Errorf("trainer: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("trainer", "run", c.agentID, start, nil)
	metrics.TrainerReplySeconds.Observe(time.Since(start).Seconds())
	return run.Content, nil
}
