package service

import (
	"errors"
	"time"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
)

var (
	// ErrInvalidInput is returned for malformed operation arguments
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownObstacle is returned when an overlap names an obstacle the level lacks
	ErrUnknownObstacle = errors.New("unknown obstacle")
)

// InputAction is a player control input
type InputAction string

const (
	ActionPush    InputAction = "push"
	ActionBrake   InputAction = "brake"
	ActionRelease InputAction = "release"
	ActionMove    InputAction = "move"
)

// SessionInfo provides information about a level session
type SessionInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	LevelState     *engine.LevelState  `json:"level_state"`
	LevelConfig    *engine.LevelConfig `json:"level_config"`
}

// TickResult contains the result of advancing a session
type TickResult struct {
	StepsExecuted int                 `json:"steps_executed"`
	DeltaSeconds  float64             `json:"delta_seconds"`
	SimTime       float64             `json:"sim_time"`
	Speed         float64             `json:"speed"`
	SpeedBand     string              `json:"speed_band"`
	ScoreChanges  []int               `json:"score_changes,omitempty"`
	ScoreEvents   []engine.ScoreEvent `json:"score_events,omitempty"`
	Truncated     bool                `json:"truncated,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
	LevelState    *engine.LevelState  `json:"level_state"`
}

// InputResult contains the result of a control input
type InputResult struct {
	Action     InputAction        `json:"action"`
	Speed      float64            `json:"speed"`
	SpeedBand  string             `json:"speed_band"`
	IsPushing  bool               `json:"is_pushing"`
	IsBraking  bool               `json:"is_braking"`
	LevelState *engine.LevelState `json:"level_state"`
}

// OverlapResult contains the result of a zone-entry event
type OverlapResult struct {
	Outcome      engine.Outcome     `json:"outcome"`
	Message      string             `json:"message"`
	Score        int                `json:"score"`
	ScoreChanges []int              `json:"score_changes,omitempty"`
	Event        *engine.ScoreEvent `json:"event,omitempty"`
	LevelState   *engine.LevelState `json:"level_state"`
}

// HistoryOptions configures score history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated score history
type HistoryResponse struct {
	Events      []engine.ScoreEvent `json:"events"`
	TotalEvents int                 `json:"total_events"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalPages  int                 `json:"total_pages"`
	HasNext     bool                `json:"has_next"`
	HasPrevious bool                `json:"has_previous"`
}

// ConfigInfo provides information about a level configuration
type ConfigInfo struct {
	Filename    string  `json:"filename"`
	ConfigID    string  `json:"config_id"` // The identifier to use for session creation
	Name        string  `json:"name"`      // Display name
	Description string  `json:"description"`
	BaseSpeed   float64 `json:"base_speed"`
	Obstacles   int     `json:"obstacles"`
	MaxScore    int     `json:"max_score"`
}
