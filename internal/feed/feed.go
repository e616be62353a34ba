// Package feed implements the content-feed collaborator: a client for
// reddit-style "hot" listing endpoints, reduced to the two fields the
// generator filters on.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/victornm/subguessr/internal/challenge"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
}

func NewClient(c Config) *Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimSuffix(c.BaseURL, "/"),
		userAgent: c.UserAgent,
	}
}

// listing is the subset of the feed's response the generator cares about.
type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				URL       string `json:"url"`
				Thumbnail string `json:"thumbnail"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (c *Client) ListCandidates(ctx context.Context, category string, limit int) ([]challenge.Candidate, error) {
	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", c.baseURL, url.PathEscape(category), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: new request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: list %s: %w", category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: list %s: unexpected status %d", category, resp.StatusCode)
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("feed: decode listing for %s: %w", category, err)
	}

	candidates := make([]challenge.Candidate, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		candidates = append(candidates, challenge.Candidate{
			Reference:    child.Data.URL,
			ThumbnailRef: child.Data.Thumbnail,
		})
	}

	return candidates, nil
}
