package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/skatesim/game/clock"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
)

// Engine provides the main interface for level operations
type Engine interface {
	CollisionObserver

	// Simulation
	Tick(deltaSeconds float64)
	Push()
	StartBrake()
	StopBrake()
	MoveInput()

	// Level state management
	GetState() *LevelState
	Restore(state *LevelState) error
	Reset() *LevelState
	Score() int
	SubscribeScore(fn ScoreListener) func()

	// Configuration
	GetConfig() *LevelConfig
	HasObstacle(id string) bool

	// History
	History() []ScoreEvent
}

var _ Engine = (*Level)(nil)

// Level assembles the skater, the obstacles and the score tracker for one
// level and drives them from a single virtual clock.
//
// Obstacles are wired to the tracker explicitly at construction, so nothing
// has to discover collaborators at runtime. Level is not safe for concurrent
// use; callers serialize access.
type Level struct {
	config *LevelConfig
	log    logger.Logger

	clock     *clock.Virtual
	tracker   *ScoreTracker
	speed     *SpeedController
	obstacles map[string]*Obstacle
	order     []string

	// simulated seconds carried over from a restored snapshot
	timeOffset   float64
	ticks        int
	maxWalkSpeed float64
	message      string

	history     []ScoreEvent
	totalEvents int

	listeners []scoreSubscription
	nextSub   int
}

// NewLevel validates config and builds a level from it
func NewLevel(config *LevelConfig, log logger.Logger) (*Level, error) {
	if config == nil {
		return nil, fmt.Errorf("level config cannot be nil")
	}
	if err := ValidateLevelConfig(config); err != nil {
		return nil, err
	}
	return newLevel(config, log), nil
}

// NewLevelWithDefaults builds a level from the built-in default config
func NewLevelWithDefaults(log logger.Logger) *Level {
	return newLevel(DefaultLevelConfig(), log)
}

func newLevel(config *LevelConfig, log logger.Logger) *Level {
	if log == nil {
		log = logger.NewNop()
	}
	l := &Level{
		config:  config,
		log:     log.With(logger.String("level", config.Name)),
		history: []ScoreEvent{},
	}
	l.build()
	return l
}

// build (re)creates every component from config and wires them together
func (l *Level) build() {
	cfg := l.config
	l.clock = clock.NewVirtual()
	l.tracker = NewScoreTracker(cfg.ScoreFloor, l.log)
	l.tracker.Subscribe(l.publishScore)
	l.speed = NewSpeedController(cfg.BaseSpeed, cfg.BrakeMode, l.clock, l, l.log)

	failReset := DefaultFailReset
	if cfg.FailResetSeconds > 0 {
		failReset = secondsToDuration(cfg.FailResetSeconds)
	}

	l.obstacles = make(map[string]*Obstacle, len(cfg.Obstacles))
	l.order = l.order[:0]
	for _, oc := range cfg.Obstacles {
		o := NewObstacle(oc, failReset, l.clock, l.log)
		o.SetScoreTracker(l.tracker)
		o.onResolve = l.recordResolution
		l.obstacles[oc.ID] = o
		l.order = append(l.order, oc.ID)
	}

	l.timeOffset = 0
	l.ticks = 0
	l.message = cfg.Messages.Welcome
}

// SetMaxWalkSpeed receives speed updates from the skater's controller
func (l *Level) SetMaxWalkSpeed(speed float64) {
	l.maxWalkSpeed = speed
}

// Tick advances the level by deltaSeconds: timers fire first, then the
// skater's per-frame speed update runs.
func (l *Level) Tick(deltaSeconds float64) {
	if deltaSeconds < 0 || math.IsNaN(deltaSeconds) || math.IsInf(deltaSeconds, 0) {
		deltaSeconds = 0
	}
	l.clock.Advance(secondsToDuration(deltaSeconds))
	l.speed.OnTick(deltaSeconds)
	l.ticks++
}

// Push starts a push boost
func (l *Level) Push() { l.speed.StartPush() }

// StartBrake presses the brake
func (l *Level) StartBrake() { l.speed.StartBrake() }

// StopBrake releases the brake
func (l *Level) StopBrake() { l.speed.StopBrake() }

// MoveInput forwards steering input to the speed controller
func (l *Level) MoveInput() { l.speed.OnMoveInput() }

// OnZoneEnter routes an overlap event to the obstacle it names
func (l *Level) OnZoneEnter(ev ZoneEvent) Outcome {
	o, ok := l.obstacles[ev.ObstacleID]
	if !ok {
		l.log.Warn("zone event for unknown obstacle", logger.String("obstacle", ev.ObstacleID))
		return OutcomeIgnored
	}
	return o.OnZoneEnter(ev)
}

// HasObstacle reports whether the level contains the obstacle
func (l *Level) HasObstacle(id string) bool {
	_, ok := l.obstacles[id]
	return ok
}

// Score returns the tracker total
func (l *Level) Score() int { return l.tracker.Score() }

// SubscribeScore registers fn for score changes. Subscriptions survive Reset
// and Restore.
func (l *Level) SubscribeScore(fn ScoreListener) func() {
	if fn == nil {
		return func() {}
	}
	l.nextSub++
	id := l.nextSub
	l.listeners = append(l.listeners, scoreSubscription{id: id, fn: fn})
	return func() {
		for i, s := range l.listeners {
			if s.id == id {
				l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
				return
			}
		}
	}
}

func (l *Level) publishScore(total int) {
	listeners := append([]scoreSubscription(nil), l.listeners...)
	for _, s := range listeners {
		s.fn(total)
	}
}

func (l *Level) recordResolution(o *Obstacle, kind Outcome, points int, scored bool) {
	l.totalEvents++
	total := l.tracker.Score()
	ev := ScoreEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		ObstacleID: o.ID(),
		Points:     points,
		Total:      total,
		Scored:     scored,
		SimTime:    l.simTime(),
		Number:     l.totalEvents,
	}
	l.history = append(l.history, ev)

	switch kind {
	case OutcomeCleared:
		l.message = FormatMessage(l.config.Messages.Cleared, o.ID(), total)
	case OutcomeFailed:
		l.message = FormatMessage(l.config.Messages.Failed, o.ID(), total)
	case OutcomeConfirmed:
		l.message = FormatMessage(l.config.Messages.Confirmed, o.ID(), total)
	}

	l.log.Info("obstacle resolved",
		logger.String("obstacle", o.ID()),
		logger.String("outcome", string(kind)),
		logger.Int("points", points),
		logger.Int("total", total),
	)
}

func (l *Level) simTime() float64 {
	return l.timeOffset + l.clock.Now().Seconds()
}

// GetState returns a snapshot of the level
func (l *Level) GetState() *LevelState {
	obstacles := make([]ObstacleState, 0, len(l.order))
	for _, id := range l.order {
		obstacles = append(obstacles, l.obstacles[id].State())
	}
	history := make([]ScoreEvent, len(l.history))
	copy(history, l.history)

	return &LevelState{
		ConfigName:   l.config.Name,
		SimTime:      l.simTime(),
		Ticks:        l.ticks,
		Skater:       l.speed.State(),
		MaxWalkSpeed: l.maxWalkSpeed,
		Score:        l.tracker.Score(),
		Obstacles:    obstacles,
		Message:      l.message,
		History:      history,
		TotalEvents:  l.totalEvents,
	}
}

// Restore rebuilds the level from a snapshot (used for persistence loading).
// Pending timers are not part of a snapshot.
func (l *Level) Restore(state *LevelState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.ConfigName != "" && state.ConfigName != l.config.Name {
		l.log.Warn("restoring snapshot from a different config",
			logger.String("snapshot_config", state.ConfigName))
	}

	l.build()
	l.timeOffset = state.SimTime
	l.ticks = state.Ticks
	l.tracker.set(state.Score)
	l.speed.restore(state.Skater)
	for _, snap := range state.Obstacles {
		if o, ok := l.obstacles[snap.ID]; ok {
			o.restore(snap)
		}
	}
	l.message = state.Message
	l.history = append([]ScoreEvent{}, state.History...)
	l.totalEvents = state.TotalEvents
	if l.totalEvents < len(l.history) {
		l.totalEvents = len(l.history)
	}
	return nil
}

// Reset restarts the level from its config. The score history is cumulative
// and survives the reset.
func (l *Level) Reset() *LevelState {
	prev := l.tracker.Score()
	l.build()
	if prev != 0 {
		l.publishScore(0)
	}
	return l.GetState()
}

// GetConfig returns the level configuration
func (l *Level) GetConfig() *LevelConfig { return l.config }

// History returns the cumulative score events
func (l *Level) History() []ScoreEvent {
	out := make([]ScoreEvent, len(l.history))
	copy(out, l.history)
	return out
}

// Clock exposes the level scheduler (used by tests and the runner)
func (l *Level) Clock() clock.Scheduler { return l.clock }

// Speed returns the skater's speed controller
func (l *Level) Speed() *SpeedController { return l.speed }

// Elapsed returns the simulated time as a Duration
func (l *Level) Elapsed() time.Duration {
	return secondsToDuration(l.simTime())
}
