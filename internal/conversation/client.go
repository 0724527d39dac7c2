// internal/conversation/client.go
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/unclebandit/leadengage-backend/internal/model"
)

// Client fetches conversation events from the upstream API, one page per
// call. The cursor comes back with each page; "" means the stream is
// exhausted for now.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// RefreshToken is called once per request cycle on a 401. Optional.
	RefreshToken func(ctx context.Context) (string, error)

	mu    sync.Mutex
	token string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		token:   token,
	}
}

type eventPage struct {
	Events     []*model.Event `json:"events"`
	NextCursor string         `json:"next_cursor"`
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) FetchEvents(ctx context.Context, leadID, cursor string) ([]*model.Event, string, error) {
	url := fmt.Sprintf("%s/leads/%s/events", c.BaseURL, leadID)
	if cursor != "" {
		url += "?cursor=" + cursor
	}

	page, err := c.fetch(ctx, url)
	if err == errUnauthorized && c.RefreshToken != nil {
		token, refreshErr := c.RefreshToken(ctx)
		if refreshErr != nil {
			return nil, "", fmt.Errorf("token refresh failed: %w", refreshErr)
		}
		c.mu.Lock()
		c.token = token
		c.mu.Unlock()
		page, err = c.fetch(ctx, url)
	}
	if err != nil {
		return nil, "", err
	}

	return page.Events, page.NextCursor, nil
}

var errUnauthorized = fmt.Errorf("conversation API rejected token (401)")

func (c *Client) fetch(ctx context.Context, url string) (*eventPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.currentToken())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("conversation API error %d: %s", resp.StatusCode, body)
	}

	var page eventPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}
