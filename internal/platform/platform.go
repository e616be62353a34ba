// Package platform is the client for the post/sharing collaborator: the
// external service that turns a challenge into a sharable post and hands
// back its id.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client creates sharable posts.
type Client interface {
	CreatePost(ctx context.Context, p Post) (string, error)
}

type Post struct {
	Title    string            `json:"title"`
	ImageURL string            `json:"imageUrl"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

type HTTPClient struct {
	http      *http.Client
	baseURL   string
	token     string
	userAgent string
}

func NewHTTPClient(c Config) *HTTPClient {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPClient{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimSuffix(c.BaseURL, "/"),
		token:     c.Token,
		userAgent: c.UserAgent,
	}
}

func (c *HTTPClient) CreatePost(ctx context.Context, p Post) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("platform: marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/posts", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("platform: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("platform: create post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("platform: create post: unexpected status %d", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("platform: decode create response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("platform: create post: empty post id")
	}

	return created.ID, nil
}
