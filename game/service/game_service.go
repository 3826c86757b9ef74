package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
)

// GameService defines all level-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation
	Tick(ctx context.Context, sessionID string, deltaSeconds float64, steps int) (*TickResult, error)
	Input(ctx context.Context, sessionID string, action InputAction) (*InputResult, error)
	Overlap(ctx context.Context, sessionID string, ev engine.ZoneEvent) (*OverlapResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.LevelState, error)

	// Level State
	GetLevelState(ctx context.Context, sessionID string) (*engine.LevelState, error)
	GetScoreHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, configID string, config *engine.LevelConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, configID string, config *engine.LevelConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles level configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.LevelConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.LevelConfig
	DefaultID() string
	SaveConfig(name string, config *engine.LevelConfig) error
}

// Session represents an active level session. The level is not safe for
// concurrent use, so every access goes through Do or Snapshot.
type Session struct {
	ID             string
	ConfigID       string
	Level          *engine.Level
	Config         *engine.LevelConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time

	mu sync.Mutex
}

// Do runs fn with exclusive access to the session's level
func (s *Session) Do(fn func(level *engine.Level)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.Level)
}

// Snapshot returns the level state under the session lock
func (s *Session) Snapshot() *engine.LevelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Level.GetState()
}
