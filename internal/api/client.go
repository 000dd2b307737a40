// Package api is a client for the host's sightings HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sporewatch/sightingmap/pkg/core"
)

// ErrDuplicate is returned by AddSighting when the host already has the id.
var ErrDuplicate = errors.New("sighting already exists")

// Client talks to a sightingmap host.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the host is reachable and returns its joined
// session count.
func (c *Client) Healthcheck(ctx context.Context) (int, error) {
	var health struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := c.getJSON(ctx, "/healthz", &health); err != nil {
		return 0, fmt.Errorf("healthcheck: %w", err)
	}
	return health.Sessions, nil
}

// MountPayload returns the raw sightings array a widget is mounted with.
// The body is not decoded so a widget can skip bad entries itself.
func (c *Client) MountPayload(ctx context.Context) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/sightings", nil)
	if err != nil {
		return nil, fmt.Errorf("mount payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mount payload returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// AddSighting posts a new sighting. The host republishes on success.
func (c *Client) AddSighting(ctx context.Context, s core.Sighting) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sighting: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/sightings", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("add sighting: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrDuplicate, s.ID)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("add sighting returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

// SelectionCount returns how often the sighting was selected.
func (c *Client) SelectionCount(ctx context.Context, id core.SightingID) (int64, error) {
	var out struct {
		Selections int64 `json:"selections"`
	}
	if err := c.getJSON(ctx, "/api/sightings/"+url.PathEscape(id.String())+"/selections", &out); err != nil {
		return 0, fmt.Errorf("selection count: %w", err)
	}
	return out.Selections, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}
