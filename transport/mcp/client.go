package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"SkateSim",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`SkateSim - MCP Interface

This is a thin client that proxies all requests to the REST API server.

You control a skater in a park. Nothing moves on its own: call tick to advance
simulated time, push/brake/release to change speed, and overlap to report that
the skater entered an obstacle's main or fail zone.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions
- level_state: speed, score and obstacle states
- tick: advance time (delta_seconds per step, up to 600 steps)
- push, brake, release, move: skater inputs
- overlap: zone entry on an obstacle (main or fail)
- describe_obstacle: points and state of one obstacle
- reset_level, score_history, list_configs, game_instructions

NOTE: The 'intent' parameter on overlap serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionSchema(extra map[string]interface{}, required ...string) mcp.ToolInputSchema {
	props := map[string]interface{}{
		"session_id": map[string]interface{}{
			"type":        "string",
			"description": "Session ID",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   append([]string{"session_id"}, required...),
	}
}

func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new skate session with optional level config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Level config id to use (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active skate sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: sessionSchema(nil),
	}, c.handleGetSession)

	// Simulation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "level_state",
		Description: "Get the skater's speed, the score and every obstacle's state",
		InputSchema: sessionSchema(nil),
	}, c.handleLevelState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance simulated time. Timers (push reset, brake pulses, debounce) fire during ticks.",
		InputSchema: sessionSchema(map[string]interface{}{
			"delta_seconds": map[string]interface{}{
				"type":        "number",
				"description": "Seconds per step, in (0, 1]. Default 0.1",
			},
			"steps": map[string]interface{}{
				"type":        "integer",
				"description": "Number of steps (default 1, max 600)",
			},
		}),
	}, c.handleTick)

	inputs := []struct {
		action      service.InputAction
		description string
	}{
		{service.ActionPush, "Push off: raises speed by a quarter of base speed, reset to base after 1.5s"},
		{service.ActionBrake, "Start braking: decelerates until release or a stop"},
		{service.ActionRelease, "Release the brake: speed recovers toward base"},
		{service.ActionMove, "Move input: gets a stopped skater rolling at base speed"},
	}
	for _, in := range inputs {
		c.mcpServer.AddTool(mcp.Tool{
			Name:        string(in.action),
			Description: in.description,
			InputSchema: sessionSchema(nil),
		}, c.inputHandler(in.action))
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "overlap",
		Description: "Report that the skater entered an obstacle zone",
		InputSchema: sessionSchema(map[string]interface{}{
			"obstacle_id": map[string]interface{}{
				"type":        "string",
				"description": "Obstacle id (see level_state)",
			},
			"zone": map[string]interface{}{
				"type":        "string",
				"enum":        []string{string(engine.ZoneMain), string(engine.ZoneFail)},
				"description": "Which zone was entered",
			},
			"height": map[string]interface{}{
				"type":        "number",
				"description": "Skater height above the obstacle (height-judged obstacles only)",
			},
			"actor_tag": map[string]interface{}{
				"type":        "string",
				"description": "Tag of the overlapping actor (default Player)",
			},
			"intent": map[string]interface{}{
				"type":        "string",
				"description": "Brief explanation of the trick you are attempting (serves as a rubber duck to help explain your reasoning)",
			},
		}, "obstacle_id", "zone"),
	}, c.handleOverlap)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_obstacle",
		Description: "Describe one obstacle: points, resolution rule and current state",
		InputSchema: sessionSchema(map[string]interface{}{
			"obstacle_id": map[string]interface{}{
				"type":        "string",
				"description": "Obstacle id",
			},
		}, "obstacle_id"),
	}, c.handleDescribeObstacle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_level",
		Description: "Reset the level to its initial state (score history is kept)",
		InputSchema: sessionSchema(nil),
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "score_history",
		Description: "View scoring events with pagination",
		InputSchema: sessionSchema(map[string]interface{}{
			"page": map[string]interface{}{
				"type":        "integer",
				"description": "Page number (default 1)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Events per page (default 20, max 100)",
			},
			"order": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"asc", "desc"},
				"description": "Sort order (default desc, newest first)",
			},
		}),
	}, c.handleScoreHistory)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available level configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules of the skate park",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// arguments returns the call arguments; missing arguments read as an empty map
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// numberArg reads a JSON number; ok is false when the key is absent
func numberArg(args map[string]interface{}, key string) (float64, bool) {
	v, ok := args[key].(float64)
	return v, ok
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

func requireSession(args map[string]interface{}) (string, *mcp.CallToolResult) {
	id := stringArg(args, "session_id")
	if id == "" {
		return "", mcp.NewToolResultError("session_id is required")
	}
	return id, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]string{}
	if configID := stringArg(args, "config_id"); configID != "" {
		body["config_id"] = configID
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s",
		info.ID, info.ConfigName, formatLevelState(info.LevelState))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		score := 0
		if s.LevelState != nil {
			score = s.LevelState.Score
		}
		fmt.Fprintf(&b, "- %s (Config: %s, Score: %d, Created: %s)\n",
			s.ID, s.ConfigName, score, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSession(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleLevelState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSession(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var state engine.LevelState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatLevelState(&state)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}

	body := map[string]interface{}{"delta_seconds": 0.1}
	if dt, ok := numberArg(args, "delta_seconds"); ok {
		body["delta_seconds"] = dt
	}
	if steps, ok := numberArg(args, "steps"); ok {
		body["steps"] = int(steps)
	}

	var result service.TickResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/tick"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatTickResult(&result)), nil
}

func (c *Client) inputHandler(action service.InputAction) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, errResult := requireSession(arguments(request))
		if errResult != nil {
			return errResult, nil
		}

		var result service.InputResult
		body := map[string]string{"action": string(action)}
		if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/input"), body, &result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatInputResult(&result)), nil
	}
}

func (c *Client) handleOverlap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}

	ev := engine.ZoneEvent{
		ObstacleID: stringArg(args, "obstacle_id"),
		ActorTag:   stringArg(args, "actor_tag"),
		Zone:       engine.ZoneKind(strings.ToLower(stringArg(args, "zone"))),
	}
	if h, ok := numberArg(args, "height"); ok {
		ev.Height = h
	}

	var result service.OverlapResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/overlap"), ev, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatOverlapResult(ev, &result)), nil
}

func (c *Client) handleDescribeObstacle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}
	obstacleID := stringArg(args, "obstacle_id")

	var state engine.LevelState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	for _, o := range state.Obstacles {
		if o.ID == obstacleID {
			return mcp.NewToolResultText(formatObstacle(o)), nil
		}
	}

	ids := make([]string, 0, len(state.Obstacles))
	for _, o := range state.Obstacles {
		ids = append(ids, o.ID)
	}
	return mcp.NewToolResultError(fmt.Sprintf("Obstacle %q not found. Obstacles in this level: %s",
		obstacleID, strings.Join(ids, ", "))), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSession(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var response struct {
		Message string             `json:"message"`
		State   *engine.LevelState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatLevelState(response.State))), nil
}

func (c *Client) handleScoreHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}

	params := url.Values{}
	if page, ok := numberArg(args, "page"); ok {
		params.Set("page", fmt.Sprint(int(page)))
	}
	if limit, ok := numberArg(args, "limit"); ok {
		params.Set("limit", fmt.Sprint(int(limit)))
	}
	if order := stringArg(args, "order"); order != "" {
		params.Set("order", order)
	}
	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "• %s (id: %s)\n  %s\n  Base speed: %.0f, Obstacles: %d, Max score: %d\n\n",
			cfg.Name, cfg.ConfigID, cfg.Description, cfg.BaseSpeed, cfg.Obstacles, cfg.MaxScore)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `🛹 SkateSim - Instructions

OBJECTIVE:
Clear as many obstacles as you can. A clean landing scores the obstacle's
positive points; bailing costs its negative points.

SPEED:
• Base speed is the cruising speed (default 500). Max speed is 2.1x base.
• push: blends 25% toward base + 25% and adds a quarter of base, capped at max.
  Speed returns to base 1.5 seconds after the last push.
• brake: slows by an eighth of base per second until you release or stop.
• release: speed recovers toward base at half of base per second.
• move: a stopped skater starts rolling again at base speed.
Timers only run while you tick, so call tick after inputs.

OBSTACLES:
Each obstacle has a main zone (the landing) and a fail zone (the bail).
• Zone-judged obstacles: entering the fail zone costs the penalty immediately.
  Landing in the main zone afterwards confirms the bail without a second penalty.
  A main zone entry without a prior bail is a clean clear.
• Height-judged obstacles: only the main zone counts. Clearing needs a height
  strictly above the obstacle's clear height (default 100).
• After a landing the obstacle ignores zone entries for 100 ms.
• Only the Player actor scores.

TOOLS:
create_session → level_state → push/tick → overlap → score_history

Have a good session!`

// Formatting helpers

func formatSessionInfo(info *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		info.ID, info.ConfigName,
		info.CreatedAt.Format("2006-01-02 15:04:05"),
		formatLevelState(info.LevelState))
}

func formatSkater(s engine.SkaterState) string {
	flags := ""
	if s.IsPushing {
		flags += " pushing"
	}
	if s.IsBraking {
		flags += " braking"
	}
	return fmt.Sprintf("Speed: %.2f / %.0f (%s)%s", s.CurrentSpeed, s.MaxSpeed, engine.SpeedBand(s), flags)
}

func formatLevelState(state *engine.LevelState) string {
	if state == nil {
		return "No level state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Level: %s\n", state.ConfigName)
	fmt.Fprintf(&b, "Time: %.2fs (%d ticks)\n", state.SimTime, state.Ticks)
	b.WriteString(formatSkater(state.Skater) + "\n")
	fmt.Fprintf(&b, "Score: %d\n", state.Score)
	if state.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", state.Message)
	}
	if len(state.Obstacles) > 0 {
		b.WriteString("\nObstacles:\n")
		for _, o := range state.Obstacles {
			fmt.Fprintf(&b, "  %s\n", obstacleLine(o))
		}
	}
	return b.String()
}

func obstacleLine(o engine.ObstacleState) string {
	line := fmt.Sprintf("%-10s +%d/-%d %-6s %s", o.ID, o.PositivePoints, o.NegativePoints, o.Resolution, o.Phase)
	if o.CoolingDown {
		line += " (cooling down)"
	}
	return line
}

func formatObstacle(o engine.ObstacleState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Obstacle: %s\n", o.ID)
	fmt.Fprintf(&b, "Points: +%d clear / -%d bail\n", o.PositivePoints, o.NegativePoints)
	switch o.Resolution {
	case engine.ResolutionHeight:
		b.WriteString("Judged by height: land in the main zone above the clear height\n")
	default:
		b.WriteString("Judged by zones: fail zone = bail, main zone = landing\n")
	}
	fmt.Fprintf(&b, "State: %s\n", o.Phase)
	if o.Phase == engine.PhaseFailPending {
		b.WriteString("A bail is pending: the next landing confirms it without another penalty\n")
	}
	if o.CoolingDown {
		b.WriteString("Cooling down: zone entries are ignored for now\n")
	}
	fmt.Fprintf(&b, "Clears: %d, Fails: %d\n", o.Clears, o.Fails)
	return b.String()
}

func formatTickResult(result *service.TickResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Advanced %d x %.3fs → t=%.2fs\n", result.StepsExecuted, result.DeltaSeconds, result.SimTime)
	if result.Truncated {
		fmt.Fprintf(&b, "⚠️ Truncated to %d steps\n", result.Limit)
	}
	fmt.Fprintf(&b, "Speed: %.2f (%s)\n", result.Speed, result.SpeedBand)
	if len(result.ScoreChanges) > 0 {
		fmt.Fprintf(&b, "Score changes: %v\n", result.ScoreChanges)
	}
	for _, ev := range result.ScoreEvents {
		fmt.Fprintf(&b, "  %s\n", eventLine(ev))
	}
	return b.String()
}

func formatInputResult(result *service.InputResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s → speed %.2f (%s)", strings.ToUpper(string(result.Action)), result.Speed, result.SpeedBand)
	if result.IsPushing {
		b.WriteString(" pushing")
	}
	if result.IsBraking {
		b.WriteString(" braking")
	}
	b.WriteString("\n")
	if result.Action == service.ActionPush {
		b.WriteString("Tick to let the push settle back to base after 1.5s\n")
	}
	return b.String()
}

func formatOverlapResult(ev engine.ZoneEvent, result *service.OverlapResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s zone of %s → %s\n", ev.Zone, ev.ObstacleID, strings.ToUpper(string(result.Outcome)))
	switch result.Outcome {
	case engine.OutcomeIgnored:
		b.WriteString("No effect (wrong actor, or the zone does not judge this obstacle)\n")
	case engine.OutcomeDebounced:
		b.WriteString("No effect: obstacle is cooling down after a landing\n")
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", result.Message)
	}
	fmt.Fprintf(&b, "Score: %d\n", result.Score)
	return b.String()
}

func eventLine(ev engine.ScoreEvent) string {
	return fmt.Sprintf("#%d %-9s %-10s %+d → %d at %.2fs", ev.Number, ev.Kind, ev.ObstacleID, ev.Points, ev.Total, ev.SimTime)
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Score History (Page %d/%d), Total events: %d\n\n",
		history.Page, history.TotalPages, history.TotalEvents)
	if len(history.Events) == 0 {
		b.WriteString("No scoring events yet\n")
	}
	for _, ev := range history.Events {
		b.WriteString(eventLine(ev) + "\n")
	}
	if history.HasNext {
		fmt.Fprintf(&b, "\nMore events on page %d\n", history.Page+1)
	}
	return b.String()
}
