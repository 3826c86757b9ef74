package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/service"
)

// Client drives one session through the REST API
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionID returns the session the client is bound to
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	var req interface{}
	if configID != "" {
		req = map[string]string{"config_id": configID}
	}

	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = info.ID
	return &info, nil
}

// Resume binds the client to an existing session and returns it
func (c *Client) Resume(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	c.sessionID = sessionID
	info, err := c.GetSession(ctx)
	if err != nil {
		c.sessionID = ""
		return nil, err
	}
	return info, nil
}

func (c *Client) GetSession(ctx context.Context) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodGet, c.sessionPath(""), nil, &info); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &info, nil
}

func (c *Client) Input(ctx context.Context, action service.InputAction) (*service.InputResult, error) {
	var result service.InputResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/input"), map[string]string{"action": string(action)}, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return &result, nil
}

func (c *Client) Tick(ctx context.Context, deltaSeconds float64, steps int) (*service.TickResult, error) {
	req := map[string]interface{}{"delta_seconds": deltaSeconds, "steps": steps}
	var result service.TickResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/tick"), req, &result); err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	return &result, nil
}

func (c *Client) Overlap(ctx context.Context, ev engine.ZoneEvent) (*service.OverlapResult, error) {
	var result service.OverlapResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/overlap"), ev, &result); err != nil {
		return nil, fmt.Errorf("overlap %s/%s: %w", ev.ObstacleID, ev.Zone, err)
	}
	return &result, nil
}

type ResetResponse struct {
	Message string             `json:"message"`
	State   *engine.LevelState `json:"state"`
}

func (c *Client) Reset(ctx context.Context) (*engine.LevelState, error) {
	var resp ResetResponse
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return resp.State, nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + c.sessionID + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
