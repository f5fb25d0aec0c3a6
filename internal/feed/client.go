// Package feed fetches and parses the external product-roadmap feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultURL is the public roadmap release-communications endpoint.
const DefaultURL = "https://www.microsoft.com/releasecommunications/api/v1/m365"

const userAgent = "evergreen/1.0"

// Client fetches the roadmap feed over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a Client for the given feed URL. If timeout is <= 0, it
// defaults to 60 seconds.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch performs a single GET of the feed and decodes the raw item array.
func (c *Client) Fetch(ctx context.Context) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: unexpected status %d", resp.StatusCode)
	}

	var items []RawItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}
	return items, nil
}
