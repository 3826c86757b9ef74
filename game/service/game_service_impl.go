package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
)

// ErrConfigNotFound is returned by config managers for unknown config names
var ErrConfigNotFound = errors.New("configuration not found")

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	log      logger.Logger
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, log logger.Logger) GameService {
	if log == nil {
		log = logger.NewNop()
	}
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		log:      log,
	}
}

// CreateSession creates a new level session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		config   *engine.LevelConfig
		configID = configName
		err      error
	)
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				return nil, s.configNotFound(configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.configs.DefaultID()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Info("session created", logger.String("session", sess.ID), logger.String("config", configID))
	return s.sessionInfo(sess), nil
}

func (s *gameServiceImpl) configNotFound(name string) error {
	available, err := s.configs.ListConfigs()
	if err == nil && len(available) > 0 {
		ids := make([]string, 0, len(available))
		for _, cfg := range available {
			ids = append(ids, cfg.ConfigID)
		}
		return fmt.Errorf("%w: config '%s' not found. Available configs: %v", ErrConfigNotFound, name, ids)
	}
	return fmt.Errorf("%w: config '%s' not found. Use /api/configs to list available configurations", ErrConfigNotFound, name)
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		LevelState:     sess.Snapshot(),
		LevelConfig:    sess.Config,
	}
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.log.Info("session deleted", logger.String("session", sessionID))
	return nil
}

// get looks up a session and refreshes its access time
func (s *gameServiceImpl) get(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// persist saves the session; failures are logged, not returned
func (s *gameServiceImpl) persist(sessionID, op string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.log.Warn("failed to persist session",
			logger.String("session", sessionID),
			logger.String("op", op),
			logger.Err(err))
	}
}

// Tick advances a session by steps ticks of deltaSeconds each
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, deltaSeconds float64, steps int) (*TickResult, error) {
	if math.IsNaN(deltaSeconds) || deltaSeconds <= 0 || deltaSeconds > engine.MaxTickDelta {
		return nil, fmt.Errorf("%w: delta_seconds must be in (0, %g], got %g", ErrInvalidInput, engine.MaxTickDelta, deltaSeconds)
	}
	if steps < 0 {
		return nil, fmt.Errorf("%w: steps must not be negative, got %d", ErrInvalidInput, steps)
	}
	if steps == 0 {
		steps = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	result := &TickResult{DeltaSeconds: deltaSeconds}
	if steps > engine.MaxBulkTicks {
		result.Truncated = true
		result.Limit = engine.MaxBulkTicks
		steps = engine.MaxBulkTicks
	}

	sess.Do(func(level *engine.Level) {
		before := level.GetState().TotalEvents
		unsubscribe := level.SubscribeScore(func(total int) {
			result.ScoreChanges = append(result.ScoreChanges, total)
		})
		defer unsubscribe()

		for i := 0; i < steps; i++ {
			if ctx.Err() != nil {
				break
			}
			level.Tick(deltaSeconds)
			result.StepsExecuted++
		}

		state := level.GetState()
		result.ScoreEvents = eventsSince(state.History, before)
		result.SimTime = state.SimTime
		result.Speed = state.Skater.CurrentSpeed
		result.SpeedBand = engine.SpeedBand(state.Skater)
		result.LevelState = state
	})

	s.persist(sessionID, "tick")
	return result, nil
}

// Input applies a control input to a session
func (s *gameServiceImpl) Input(ctx context.Context, sessionID string, action InputAction) (*InputResult, error) {
	apply, err := inputHandler(action)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	result := &InputResult{Action: action}
	sess.Do(func(level *engine.Level) {
		apply(level)
		state := level.GetState()
		result.Speed = state.Skater.CurrentSpeed
		result.SpeedBand = engine.SpeedBand(state.Skater)
		result.IsPushing = state.Skater.IsPushing
		result.IsBraking = state.Skater.IsBraking
		result.LevelState = state
	})

	s.log.Debug("input applied",
		logger.String("session", sessionID),
		logger.String("action", string(action)),
		logger.Float64("speed", result.Speed))
	s.persist(sessionID, "input")
	return result, nil
}

func inputHandler(action InputAction) (func(*engine.Level), error) {
	switch InputAction(strings.ToLower(string(action))) {
	case ActionPush:
		return (*engine.Level).Push, nil
	case ActionBrake:
		return (*engine.Level).StartBrake, nil
	case ActionRelease:
		return (*engine.Level).StopBrake, nil
	case ActionMove:
		return (*engine.Level).MoveInput, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q (use push, brake, release or move)", ErrInvalidInput, action)
	}
}

// Overlap delivers a zone-entry event to a session's level
func (s *gameServiceImpl) Overlap(ctx context.Context, sessionID string, ev engine.ZoneEvent) (*OverlapResult, error) {
	if ev.ObstacleID == "" {
		return nil, fmt.Errorf("%w: obstacle_id is required", ErrInvalidInput)
	}
	if ev.Zone != engine.ZoneMain && ev.Zone != engine.ZoneFail {
		return nil, fmt.Errorf("%w: zone must be %q or %q, got %q", ErrInvalidInput, engine.ZoneMain, engine.ZoneFail, ev.Zone)
	}
	if ev.ActorTag == "" {
		ev.ActorTag = engine.PlayerTag
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	var (
		result  *OverlapResult
		unknown bool
	)
	sess.Do(func(level *engine.Level) {
		if !level.HasObstacle(ev.ObstacleID) {
			unknown = true
			return
		}

		before := level.GetState().TotalEvents
		var changes []int
		unsubscribe := level.SubscribeScore(func(total int) { changes = append(changes, total) })
		outcome := level.OnZoneEnter(ev)
		unsubscribe()

		state := level.GetState()
		result = &OverlapResult{
			Outcome:      outcome,
			Message:      state.Message,
			Score:        state.Score,
			ScoreChanges: changes,
			LevelState:   state,
		}
		if events := eventsSince(state.History, before); len(events) > 0 {
			result.Event = &events[len(events)-1]
		}
	})
	if unknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObstacle, ev.ObstacleID)
	}

	s.persist(sessionID, "overlap")
	return result, nil
}

// Reset resets a session's level to its initial state
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.LevelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	var state *engine.LevelState
	sess.Do(func(level *engine.Level) {
		state = level.Reset()
	})

	s.persist(sessionID, "reset")
	return state, nil
}

// GetLevelState retrieves the current level state
func (s *gameServiceImpl) GetLevelState(ctx context.Context, sessionID string) (*engine.LevelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// GetScoreHistory returns paginated score history
func (s *gameServiceImpl) GetScoreHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	var history []engine.ScoreEvent
	sess.Do(func(level *engine.Level) {
		history = level.History()
	})
	return paginate(history, opts), nil
}

// paginate slices history into a page. Defaults: page 1, limit 20 (max 100),
// newest first.
func paginate(history []engine.ScoreEvent, opts HistoryOptions) *HistoryResponse {
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	events := []engine.ScoreEvent{}
	if opts.Order == "desc" {
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			events = append(events, history[i])
		}
	} else if start < total {
		events = append(events, history[start:end]...)
	}

	return &HistoryResponse{
		Events:      events,
		TotalEvents: total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}
}

// eventsSince returns history entries numbered above n
func eventsSince(history []engine.ScoreEvent, n int) []engine.ScoreEvent {
	var out []engine.ScoreEvent
	for _, ev := range history {
		if ev.Number > n {
			out = append(out, ev)
		}
	}
	return out
}

// ListConfigs returns available level configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific level configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a level configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error {
	if configName == "" || strings.ContainsAny(configName, `/\`) || strings.Contains(configName, "..") {
		return fmt.Errorf("%w: invalid config name %q", ErrInvalidInput, configName)
	}
	if err := s.configs.SaveConfig(configName, config); err != nil {
		return err
	}
	s.log.Info("config saved", logger.String("config", configName))
	return nil
}
