package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/skatesim/game/config"
	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
	"github.com/wricardo/mcp-training/skatesim/game/service"
	"github.com/wricardo/mcp-training/skatesim/game/session"
	"github.com/wricardo/mcp-training/skatesim/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	CreateSessionFunc func(ctx context.Context, configName string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	TickFunc    func(ctx context.Context, sessionID string, dt float64, steps int) (*service.TickResult, error)
	InputFunc   func(ctx context.Context, sessionID string, action service.InputAction) (*service.InputResult, error)
	OverlapFunc func(ctx context.Context, sessionID string, ev engine.ZoneEvent) (*service.OverlapResult, error)
	ResetFunc   func(ctx context.Context, sessionID string) (*engine.LevelState, error)

	GetLevelStateFunc   func(ctx context.Context, sessionID string) (*engine.LevelState, error)
	GetScoreHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc  func(ctx context.Context, configName string) (*engine.LevelConfig, error)
	SaveConfigFunc  func(ctx context.Context, configName string, config *engine.LevelConfig) error
}

func (m *MockGameService) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, configName)
	}
	return &service.SessionInfo{ID: "test-session", ConfigName: configName, CreatedAt: time.Now()}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, ConfigName: "test-config", CreatedAt: time.Now()}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockGameService) Tick(ctx context.Context, sessionID string, dt float64, steps int) (*service.TickResult, error) {
	if m.TickFunc != nil {
		return m.TickFunc(ctx, sessionID, dt, steps)
	}
	return &service.TickResult{StepsExecuted: 1, DeltaSeconds: dt, LevelState: &engine.LevelState{}}, nil
}

func (m *MockGameService) Input(ctx context.Context, sessionID string, action service.InputAction) (*service.InputResult, error) {
	if m.InputFunc != nil {
		return m.InputFunc(ctx, sessionID, action)
	}
	return &service.InputResult{Action: action, LevelState: &engine.LevelState{}}, nil
}

func (m *MockGameService) Overlap(ctx context.Context, sessionID string, ev engine.ZoneEvent) (*service.OverlapResult, error) {
	if m.OverlapFunc != nil {
		return m.OverlapFunc(ctx, sessionID, ev)
	}
	return &service.OverlapResult{Outcome: engine.OutcomeIgnored, LevelState: &engine.LevelState{}}, nil
}

func (m *MockGameService) Reset(ctx context.Context, sessionID string) (*engine.LevelState, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, sessionID)
	}
	return &engine.LevelState{}, nil
}

func (m *MockGameService) GetLevelState(ctx context.Context, sessionID string) (*engine.LevelState, error) {
	if m.GetLevelStateFunc != nil {
		return m.GetLevelStateFunc(ctx, sessionID)
	}
	return &engine.LevelState{}, nil
}

func (m *MockGameService) GetScoreHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetScoreHistoryFunc != nil {
		return m.GetScoreHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{Events: []engine.ScoreEvent{}, Page: opts.Page, PageSize: opts.Limit, TotalPages: 1}, nil
}

func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configName)
	}
	cfg := engine.DefaultLevelConfig()
	cfg.Name = configName
	return cfg, nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, configName string, cfg *engine.LevelConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configName, cfg)
	}
	return nil
}

// Test helpers

func setupTestServer(t *testing.T, svc service.GameService) (*Server, *websocket.Hub) {
	t.Helper()
	hub := websocket.NewHub(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return NewServer(svc, hub, logger.NewNop()), hub
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, makeRequest(method, path, body))
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
}

func notFound(id string) error {
	return fmt.Errorf("session %s: %w", id, session.ErrSessionNotFound)
}

// Session Management Tests

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		createErr      error
		expectedConfig string
		expectedStatus int
	}{
		{"default config", nil, nil, "", http.StatusCreated},
		{"config_id", map[string]string{"config_id": "street"}, nil, "street", http.StatusCreated},
		{"config_name is not an alias", map[string]string{"config_name": "classic"}, nil, "", http.StatusCreated},
		{"unknown config", map[string]string{"config_id": "nope"}, fmt.Errorf("%w: config 'nope' not found", service.ErrConfigNotFound), "nope", http.StatusNotFound},
		{"service error", nil, errors.New("service error"), "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				CreateSessionFunc: func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != tt.expectedConfig {
						t.Errorf("Expected config %q, got %q", tt.expectedConfig, configName)
					}
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					return &service.SessionInfo{ID: "ab12", ConfigName: configName}, nil
				},
			}
			server, _ := setupTestServer(t, mock)

			w := do(t, server, "POST", "/api/sessions", tt.requestBody)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			if tt.createErr != nil {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] != tt.createErr.Error() {
					t.Errorf("Expected error %q, got %q", tt.createErr.Error(), resp["error"])
				}
				return
			}
			var resp service.SessionInfo
			parseResponse(t, w, &resp)
			if resp.ID != "ab12" {
				t.Errorf("Expected session ID ab12, got %s", resp.ID)
			}
		})
	}
}

func TestCreateSessionInvalidBody(t *testing.T) {
	server, _ := setupTestServer(t, &MockGameService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader("{not json"))
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	mock := &MockGameService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "aaaa", CreatedAt: now.Add(-3 * time.Minute), LastAccessedAt: now.Add(-1 * time.Minute)},
				{ID: "bbbb", CreatedAt: now.Add(-2 * time.Minute), LastAccessedAt: now.Add(-3 * time.Minute)},
				{ID: "cccc", CreatedAt: now.Add(-1 * time.Minute), LastAccessedAt: now.Add(-2 * time.Minute)},
			}, nil
		},
	}
	server, _ := setupTestServer(t, mock)

	tests := []struct {
		query     string
		wantFirst string
		wantCount int
	}{
		{"", "aaaa", 3},
		{"?sort=created", "cccc", 3},
		{"?sort=created&order=asc", "aaaa", 3},
		{"?order=asc&limit=2", "bbbb", 2},
		{"?limit=0", "aaaa", 3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(t, server, "GET", "/api/sessions"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)
			if resp.Count != tt.wantCount || len(resp.Sessions) != tt.wantCount {
				t.Errorf("Expected %d sessions, got %d", tt.wantCount, resp.Count)
			}
			if resp.Total != 3 {
				t.Errorf("Expected total 3, got %d", resp.Total)
			}
			if resp.Sessions[0].ID != tt.wantFirst {
				t.Errorf("Expected first session %s, got %s", tt.wantFirst, resp.Sessions[0].ID)
			}
		})
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	mock := &MockGameService{
		GetSessionFunc: func(ctx context.Context, id string) (*service.SessionInfo, error) {
			if id != "ab12" {
				return nil, notFound(id)
			}
			return &service.SessionInfo{ID: id}, nil
		},
		DeleteSessionFunc: func(ctx context.Context, id string) error {
			if id != "ab12" {
				return notFound(id)
			}
			return nil
		},
	}
	server, _ := setupTestServer(t, mock)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/sessions/ab12", http.StatusOK},
		{"GET", "/api/sessions/zz99", http.StatusNotFound},
		{"DELETE", "/api/sessions/ab12", http.StatusOK},
		{"DELETE", "/api/sessions/zz99", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(t, server, tt.method, tt.path, nil)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

// Simulation Tests

func TestTickHandler(t *testing.T) {
	var gotDT float64
	var gotSteps int
	mock := &MockGameService{
		TickFunc: func(ctx context.Context, id string, dt float64, steps int) (*service.TickResult, error) {
			if dt <= 0 {
				return nil, fmt.Errorf("%w: delta_seconds must be in (0, 1], got %g", service.ErrInvalidInput, dt)
			}
			gotDT, gotSteps = dt, steps
			return &service.TickResult{StepsExecuted: steps, DeltaSeconds: dt, SpeedBand: "CRUISING", LevelState: &engine.LevelState{}}, nil
		},
	}
	server, _ := setupTestServer(t, mock)

	w := do(t, server, "POST", "/api/sessions/ab12/tick", map[string]interface{}{"delta_seconds": 0.1, "steps": 15})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotDT != 0.1 || gotSteps != 15 {
		t.Errorf("Expected dt 0.1 steps 15, got %v %d", gotDT, gotSteps)
	}

	var result service.TickResult
	parseResponse(t, w, &result)
	if result.StepsExecuted != 15 || result.SpeedBand != "CRUISING" {
		t.Errorf("Unexpected tick result: %+v", result)
	}

	w = do(t, server, "POST", "/api/sessions/ab12/tick", map[string]interface{}{"delta_seconds": 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for zero delta, got %d", w.Code)
	}
}

func TestInputHandler(t *testing.T) {
	mock := &MockGameService{
		InputFunc: func(ctx context.Context, id string, action service.InputAction) (*service.InputResult, error) {
			if action != service.ActionPush {
				return nil, fmt.Errorf("%w: unknown action %q", service.ErrInvalidInput, action)
			}
			return &service.InputResult{Action: action, Speed: 656.25, IsPushing: true, LevelState: &engine.LevelState{}}, nil
		},
	}
	server, _ := setupTestServer(t, mock)

	tests := []struct {
		action string
		status int
	}{
		{"push", http.StatusOK},
		{"kickflip", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			w := do(t, server, "POST", "/api/sessions/ab12/input", map[string]string{"action": tt.action})
			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, w.Code)
			}
			if tt.status == http.StatusOK {
				var result service.InputResult
				parseResponse(t, w, &result)
				if result.Speed != 656.25 || !result.IsPushing {
					t.Errorf("Unexpected input result: %+v", result)
				}
			}
		})
	}
}

func TestOverlapHandler(t *testing.T) {
	mock := &MockGameService{
		OverlapFunc: func(ctx context.Context, id string, ev engine.ZoneEvent) (*service.OverlapResult, error) {
			if id != "ab12" {
				return nil, notFound(id)
			}
			if ev.ObstacleID != "rail" {
				return nil, fmt.Errorf("%w: %s", service.ErrUnknownObstacle, ev.ObstacleID)
			}
			if ev.Zone != engine.ZoneMain || ev.Height != 120 {
				t.Errorf("Unexpected event decoded: %+v", ev)
			}
			return &service.OverlapResult{Outcome: engine.OutcomeCleared, Score: 10, ScoreChanges: []int{10}, LevelState: &engine.LevelState{Score: 10}}, nil
		},
	}
	server, _ := setupTestServer(t, mock)

	tests := []struct {
		name   string
		path   string
		body   map[string]interface{}
		status int
	}{
		{"cleared", "/api/sessions/ab12/overlap", map[string]interface{}{"obstacle_id": "rail", "zone": "main", "height": 120}, http.StatusOK},
		{"unknown obstacle", "/api/sessions/ab12/overlap", map[string]interface{}{"obstacle_id": "halfpipe", "zone": "main"}, http.StatusUnprocessableEntity},
		{"unknown session", "/api/sessions/zz99/overlap", map[string]interface{}{"obstacle_id": "rail", "zone": "main"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "POST", tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestResetAndState(t *testing.T) {
	mock := &MockGameService{
		ResetFunc: func(ctx context.Context, id string) (*engine.LevelState, error) {
			return &engine.LevelState{ConfigName: "Classic Park", Message: "Welcome"}, nil
		},
		GetLevelStateFunc: func(ctx context.Context, id string) (*engine.LevelState, error) {
			return &engine.LevelState{ConfigName: "Classic Park", Score: 15}, nil
		},
	}
	server, _ := setupTestServer(t, mock)

	w := do(t, server, "POST", "/api/sessions/ab12/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Message string             `json:"message"`
		State   *engine.LevelState `json:"state"`
	}
	parseResponse(t, w, &resp)
	if resp.State == nil || resp.State.Message != "Welcome" {
		t.Errorf("Unexpected reset response: %+v", resp)
	}

	w = do(t, server, "GET", "/api/sessions/ab12/state", nil)
	var state engine.LevelState
	parseResponse(t, w, &state)
	if state.Score != 15 {
		t.Errorf("Expected score 15, got %d", state.Score)
	}
}

func TestGetHistoryQuery(t *testing.T) {
	tests := []struct {
		query string
		want  service.HistoryOptions
	}{
		{"", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
		{"?page=2&limit=5&order=asc", service.HistoryOptions{Page: 2, Limit: 5, Order: "asc"}},
		{"?page=-1&limit=abc&order=sideways", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got service.HistoryOptions
			mock := &MockGameService{
				GetScoreHistoryFunc: func(ctx context.Context, id string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
					got = opts
					return &service.HistoryResponse{Events: []engine.ScoreEvent{}}, nil
				},
			}
			server, _ := setupTestServer(t, mock)

			w := do(t, server, "GET", "/api/sessions/ab12/history"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if got != tt.want {
				t.Errorf("Expected options %+v, got %+v", tt.want, got)
			}
		})
	}
}

// Configuration Tests

func TestConfigHandlers(t *testing.T) {
	saved := map[string]*engine.LevelConfig{}
	mock := &MockGameService{
		ListConfigsFunc: func(ctx context.Context) ([]*service.ConfigInfo, error) {
			return []*service.ConfigInfo{{ConfigID: "classic", Name: "Classic Park", MaxScore: 55}}, nil
		},
		LoadConfigFunc: func(ctx context.Context, name string) (*engine.LevelConfig, error) {
			if name != "classic" {
				return nil, fmt.Errorf("%w: %s", service.ErrConfigNotFound, name)
			}
			return engine.DefaultLevelConfig(), nil
		},
		SaveConfigFunc: func(ctx context.Context, name string, cfg *engine.LevelConfig) error {
			if err := engine.ValidateLevelConfig(cfg); err != nil {
				return err
			}
			saved[name] = cfg
			return nil
		},
	}
	server, _ := setupTestServer(t, mock)

	w := do(t, server, "GET", "/api/configs", nil)
	var configs []*service.ConfigInfo
	parseResponse(t, w, &configs)
	if len(configs) != 1 || configs[0].MaxScore != 55 {
		t.Errorf("Unexpected config list: %+v", configs)
	}

	if w := do(t, server, "GET", "/api/configs/classic.yaml", nil); w.Code != http.StatusOK {
		t.Errorf("Expected extension to be trimmed, got status %d", w.Code)
	}
	if w := do(t, server, "GET", "/api/configs/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing config, got %d", w.Code)
	}

	street := engine.DefaultLevelConfig()
	street.Name = "Street Plaza"
	if w := do(t, server, "POST", "/api/configs", street); w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := saved["street-plaza"]; !ok {
		t.Errorf("Expected config saved as street-plaza, got %v", saved)
	}

	if w := do(t, server, "PUT", "/api/configs/night", street); w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	if _, ok := saved["night"]; !ok {
		t.Error("Expected config saved as night")
	}

	broken := engine.DefaultLevelConfig()
	broken.Obstacles = nil
	if w := do(t, server, "PUT", "/api/configs/broken", broken); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid config, got %d", w.Code)
	}

	if w := do(t, server, "POST", "/api/configs", map[string]string{"name": "!!!"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unusable name, got %d", w.Code)
	}
}

func TestConfigSlug(t *testing.T) {
	tests := map[string]string{
		"Street Plaza":   "street-plaza",
		"  Classic  ":    "classic",
		"Rails & Ledges": "rails-ledges",
		"???":            "",
	}
	for in, want := range tests {
		if got := configSlug(in); got != want {
			t.Errorf("configSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", session.ErrSessionNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", service.ErrConfigNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", service.ErrUnknownObstacle), http.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", service.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", engine.ErrInvalidConfig), http.StatusBadRequest},
		{session.ErrInvalidSessionID, http.StatusBadRequest},
		{session.ErrSessionAlreadyExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestUnifiedSessions(t *testing.T) {
	cfg := engine.DefaultLevelConfig()
	mock := &MockGameService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "aaaa", ConfigName: "classic", LevelConfig: cfg},
				{ID: "bbbb", ConfigName: "street"},
			}, nil
		},
		GetSessionFunc: func(ctx context.Context, id string) (*service.SessionInfo, error) {
			if id == "bbbb" {
				return &service.SessionInfo{ID: id, ConfigName: "street"}, nil
			}
			return nil, notFound(id)
		},
	}
	server, _ := setupTestServer(t, mock)

	tests := []struct {
		query    string
		sessions int
		config   string
		maxScore int
	}{
		{"", 2, "classic", engine.MaxAchievableScore(cfg)},
		{"?configName=street", 1, "street", 0},
		{"?sessionIds=bbbb,%20zz99,", 1, "street", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(t, server, "GET", "/api/sessions/unified"+tt.query, nil)
			var resp struct {
				ConfigName string                   `json:"config_name"`
				MaxScore   int                      `json:"max_score"`
				Sessions   []map[string]interface{} `json:"sessions"`
			}
			parseResponse(t, w, &resp)
			if len(resp.Sessions) != tt.sessions || resp.ConfigName != tt.config || resp.MaxScore != tt.maxScore {
				t.Errorf("Unexpected unified response: %+v", resp)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	server, _ := setupTestServer(t, &MockGameService{})
	w := do(t, server, "GET", "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("Unexpected health response %d %s", w.Code, w.Body.String())
	}
}

func TestWebSocketRouteValidation(t *testing.T) {
	mock := &MockGameService{
		GetSessionFunc: func(ctx context.Context, id string) (*service.SessionInfo, error) {
			return nil, notFound(id)
		},
	}
	server, _ := setupTestServer(t, mock)

	if w := do(t, server, "GET", "/ws", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without sessionId, got %d", w.Code)
	}
	if w := do(t, server, "GET", "/ws?sessionId=zz99", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", w.Code)
	}

	noHub := NewServer(mock, nil, nil)
	w := httptest.NewRecorder()
	noHub.ServeHTTP(w, makeRequest("GET", "/ws?sessionId=ab12", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without hub, got %d", w.Code)
	}
}

// newRealService wires the real service stack around a temp config dir
func newRealService(t *testing.T) service.GameService {
	t.Helper()
	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	return service.NewGameService(session.NewManager(logger.NewNop()), configs, logger.NewNop())
}

func TestEndToEndRide(t *testing.T) {
	server, hub := setupTestServer(t, newRealService(t))
	ts := httptest.NewServer(server)
	defer ts.Close()

	w := do(t, server, "POST", "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to create session: %d %s", w.Code, w.Body.String())
	}
	var info service.SessionInfo
	parseResponse(t, w, &info)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?sessionId=" + info.ID
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount(info.ID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	w = do(t, server, "POST", "/api/sessions/"+info.ID+"/overlap", map[string]string{"obstacle_id": "rail", "zone": "main"})
	if w.Code != http.StatusOK {
		t.Fatalf("Overlap failed: %d %s", w.Code, w.Body.String())
	}
	var overlap service.OverlapResult
	parseResponse(t, w, &overlap)
	if overlap.Outcome != engine.OutcomeCleared || overlap.Score != 10 {
		t.Errorf("Expected cleared with score 10, got %s %d", overlap.Outcome, overlap.Score)
	}

	events := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for len(events) < 2 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read WebSocket message: %v", err)
		}
		var msg websocket.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		events[msg.Event] = true
	}
	if !events[websocket.EventStateUpdate] || !events[websocket.EventScoreUpdated] {
		t.Errorf("Expected state and score events, got %v", events)
	}

	w = do(t, server, "GET", "/api/sessions/"+info.ID+"/history", nil)
	var history service.HistoryResponse
	parseResponse(t, w, &history)
	if history.TotalEvents != 1 || history.Events[0].ObstacleID != "rail" {
		t.Errorf("Unexpected history: %+v", history)
	}
}
