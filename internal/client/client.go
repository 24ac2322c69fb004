// Package client talks to a running utilsim over its HTTP API: it reads
// status and agents, drives the admin endpoints, and follows the tick stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/utility-sim/internal/api"
	"github.com/talgya/utility-sim/internal/engine"
	"github.com/talgya/utility-sim/internal/world"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	Name          string  `json:"name"`
	Tick          uint64  `json:"tick"`
	Speed         float64 `json:"speed"`
	Running       bool    `json:"running"`
	RunID         string  `json:"run_id"`
	Agents        int     `json:"agents"`
	Locations     int     `json:"locations"`
	Stalled       int     `json:"stalled"`
	Active        int     `json:"active"`
	CustomActions int     `json:"custom_actions"`
	Clients       int     `json:"clients"`
}

// Agent mirrors one entry of GET /api/v1/agents.
type Agent struct {
	Name     string     `json:"name"`
	Position world.Vec2 `json:"position"`
	Radius   float64    `json:"radius"`
	Stalled  bool       `json:"stalled"`
	Active   bool       `json:"active"`
	Behavior string     `json:"behavior"`
	Action   string     `json:"action"`
	Target   string     `json:"target"`
	Score    float64    `json:"score"`
}

// Client is an API client for one server.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// New creates a Client targeting the given API base URL.
func New(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status fetches the scenario summary.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.fetchJSON(ctx, "/api/v1/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Agents fetches every agent's latest decision.
func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.fetchJSON(ctx, "/api/v1/agents", &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// Inspect asks which member covers (x, y).
func (c *Client) Inspect(ctx context.Context, x, y float64) (*engine.Inspection, error) {
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(x, 'g', -1, 64))
	q.Set("y", strconv.FormatFloat(y, 'g', -1, 64))
	var info engine.Inspection
	if err := c.fetchJSON(ctx, "/api/v1/inspect?"+q.Encode(), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SetSpeed changes the server's speed multiplier. Requires the admin key.
func (c *Client) SetSpeed(ctx context.Context, speed float64) error {
	return c.post(ctx, "/api/v1/speed", map[string]float64{"speed": speed}, nil)
}

// Step advances the server ticks times and returns the new tick.
// Requires the admin key.
func (c *Client) Step(ctx context.Context, ticks int) (uint64, error) {
	var resp struct {
		Tick uint64 `json:"tick"`
	}
	if err := c.post(ctx, "/api/v1/step", map[string]int{"ticks": ticks}, &resp); err != nil {
		return 0, err
	}
	return resp.Tick, nil
}

// Follow streams tick messages to fn until ctx is done, the server closes
// the stream or fn returns an error.
func (c *Client) Follow(ctx context.Context, fn func(api.TickMessage) error) error {
	u, err := url.Parse(c.BaseURL + "/api/v1/stream")
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when ctx ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg api.TickMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (c *Client) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return c.do(req, path, target)
}

func (c *Client) post(ctx context.Context, path string, body, target any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	return c.do(req, path, target)
}

func (c *Client) do(req *http.Request, path string, target any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s returned %d: %s", req.Method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
