// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ccheshirecat/usbvlan/internal/agent/events"
	"github.com/ccheshirecat/usbvlan/internal/agent/provisioner"
)

// DefaultBaseURL is where usbvland serves its status API by default.
const DefaultBaseURL = "http://127.0.0.1:9310"

// Client wraps REST and websocket access to the usbvland status API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// New creates a client with the provided base URL (e.g. http://127.0.0.1:9310).
func New(rawURL string) (*Client, error) {
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported scheme %q", parsed.Scheme)
	}
	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Status is the agent state reported by the daemon.
type Status = provisioner.Status

// Event is one provisioning event.
type Event = events.AgentEvent

// Health reports whether the daemon answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, "/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: health http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	req, err := c.newRequest(ctx, "/api/v1/status", nil)
	if err != nil {
		return nil, err
	}
	var status Status
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Events returns up to limit recent events, newest first. A non-positive
// limit uses the server default.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	req, err := c.newRequest(ctx, "/api/v1/events", query)
	if err != nil {
		return nil, err
	}
	var items []Event
	if err := c.do(req, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// WatchEvents streams events and invokes handler for each payload until the
// context is cancelled or the server closes the connection.
func (c *Client) WatchEvents(ctx context.Context, handler func(Event)) error {
	wsURL := c.baseURL.ResolveReference(&url.URL{Path: "/api/v1/events/stream"})
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("client: watch events http %d", resp.StatusCode)
		}
		return fmt.Errorf("client: watch events: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				return fmt.Errorf("client: decode event: %w", err)
			}
			return fmt.Errorf("client: event stream error: %w", err)
		}
		if handler != nil {
			handler(event)
		}
	}
}

func (c *Client) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	resolved := c.baseURL.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("client: http %d", resp.StatusCode)
		}
		if msg, ok := apiErr["error"].(string); ok {
			return fmt.Errorf("client: http %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("client: http %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
