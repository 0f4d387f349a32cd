package telegram

import (
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

// DefaultGatewayTimeout bounds a single gateway round trip.
const DefaultGatewayTimeout = 30 * time.Second

// GatewayClient implements ChatClient against the HTTP gateway sidecar
// that holds the long-lived user session.
type GatewayClient struct {
	baseURL string
	client  *http.Client
}

// GatewayOption configures GatewayClient.
type GatewayOption func(*GatewayClient)

// WithGatewayTimeout sets the HTTP client timeout.
func WithGatewayTimeout(d time.Duration) GatewayOption {
	return func(c *GatewayClient) {
		c.client.Timeout = d
	}
}

// WithGatewayHTTPClient sets a custom http.Client.
func WithGatewayHTTPClient(client *http.Client) GatewayOption {
	return func(c *GatewayClient) {
		c.client = client
	}
}

// NewGatewayClient creates a client for the gateway at baseURL.
func NewGatewayClient(baseURL string, opts ...GatewayOption) *GatewayClient {
	c := &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultGatewayTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type messagesResponse struct {
	Items []Message `json:"items"`
}

type searchResponse struct {
	Items []ChannelInfo `json:"items"`
}

// ResolveChannel looks channel metadata up by username.
func (c *GatewayClient) ResolveChannel(ctx context.Context, username string) (*ChannelInfo, error) {
	var info ChannelInfo
	if err := c.do(ctx, http.MethodGet, "channels/"+url.PathEscape(username), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Messages fetches up to limit recent messages, newest first.
func (c *GatewayClient) Messages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	path := fmt.Sprintf("channels/%s/messages?limit=%d", url.PathEscape(channelID), limit)
	var resp messagesResponse
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SearchChannels runs platform-wide channel search for a query.
func (c *GatewayClient) SearchChannels(ctx context.Context, query string, limit int) ([]ChannelInfo, error) {
	path := fmt.Sprintf("search?q=%s&limit=%d", url.QueryEscape(query), limit)
	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Join subscribes the session to a channel.
func (c *GatewayClient) Join(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "channels/"+url.PathEscape(username)+"/join", nil)
}

func (c *GatewayClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrAccessDenied
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 30 * time.Second
}

// Verify interface compliance at compile time.
var _ ChatClient = (*GatewayClient)(nil)
