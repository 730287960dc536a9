package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bsm/internal/config"
	"bsm/internal/domain"
)

// Fetcher returns one fresh server list snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.ServerRecord, error)
}

// Client polls public server list endpoint.
// Params: endpoint URL, body size limit, user agent, and HTTP client.
// Returns: feed reader for cycle runner and listservers command.
type Client struct {
	url       string
	maxBody   int64
	userAgent string
	client    *http.Client
}

// New creates feed client from config.
// Params: feed config with defaults applied.
// Returns: initialized client.
func New(cfg config.FeedConfig) *Client {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 15
	}
	return &Client{
		url:       strings.TrimSpace(cfg.URL),
		maxBody:   cfg.MaxBodyBytes,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Fetch downloads and decodes full server list.
// Params: context bounding the request.
// Returns: records in feed order or error wrapping domain.ErrFeedUnavailable.
func (c *Client) Fetch(ctx context.Context) ([]domain.ServerRecord, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrFeedUnavailable, err)
	}
	request.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		request.Header.Set("User-Agent", c.userAgent)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %v", domain.ErrFeedUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("%w: status=%d", domain.ErrFeedUnavailable, response.StatusCode)
	}

	reader := io.Reader(response.Body)
	if c.maxBody > 0 {
		reader = io.LimitReader(response.Body, c.maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrFeedUnavailable, err)
	}
	if c.maxBody > 0 && int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrFeedUnavailable, c.maxBody)
	}

	servers, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)
	}
	return servers, nil
}

// Decode parses server list JSON array and validates counters.
// Params: raw response body.
// Returns: decoded records or decode/validation error.
func Decode(body []byte) ([]domain.ServerRecord, error) {
	var servers []domain.ServerRecord
	if err := json.Unmarshal(body, &servers); err != nil {
		return nil, fmt.Errorf("decode server list: %w", err)
	}
	for _, server := range servers {
		if err := server.Validate(); err != nil {
			return nil, err
		}
	}
	if servers == nil {
		servers = []domain.ServerRecord{}
	}
	return servers, nil
}
