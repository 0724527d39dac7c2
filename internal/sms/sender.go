// internal/sms/sender.go
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Sender delivers one message and returns the provider's message id for
// audit.
type Sender interface {
	Send(ctx context.Context, from, to, body string) (string, error)
}

// Client talks to the messaging provider over HTTP. Transient failures
// (network, 5xx) retry with backoff up to MaxAttempts; a 401 triggers one
// token refresh before the request is retried; other 4xx are permanent.
type Client struct {
	BaseURL     string
	HTTP        *http.Client
	MaxAttempts int

	// RefreshToken exchanges an expired token for a fresh one. Optional;
	// without it a 401 is a permanent failure.
	RefreshToken func(ctx context.Context) (string, error)

	mu    sync.Mutex
	token string
}

func NewClient(baseURL, token string, maxAttempts int) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
		MaxAttempts: maxAttempts,
		token:       token,
	}
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

func (c *Client) Send(ctx context.Context, from, to, body string) (string, error) {
	payload, err := json.Marshal(sendRequest{From: from, To: to, Body: body})
	if err != nil {
		return "", err
	}

	refreshed := false
	var lastErr error

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		id, retryable, err := c.attempt(ctx, payload, &refreshed)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}

		log.Printf("Send attempt %d/%d to %s failed: %v", attempt, c.MaxAttempts, to, err)
		if attempt < c.MaxAttempts {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("send to %s exhausted %d attempts: %w", to, c.MaxAttempts, lastErr)
}

// attempt performs one HTTP round trip. The bool reports whether the error
// is worth retrying.
func (c *Client) attempt(ctx context.Context, payload []byte, refreshed *bool) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.currentToken())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out sendResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", false, fmt.Errorf("invalid provider response: %w", err)
		}
		return out.MessageID, false, nil

	case resp.StatusCode == http.StatusUnauthorized:
		if c.RefreshToken == nil || *refreshed {
			return "", false, fmt.Errorf("provider rejected token (401)")
		}
		*refreshed = true
		token, err := c.RefreshToken(ctx)
		if err != nil {
			return "", false, fmt.Errorf("token refresh failed: %w", err)
		}
		c.setToken(token)
		return "", true, fmt.Errorf("token expired, refreshed")

	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", true, fmt.Errorf("provider error %d: %s", resp.StatusCode, body)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("provider rejected message (%d): %s", resp.StatusCode, body)
	}
}

var _ Sender = (*Client)(nil)
