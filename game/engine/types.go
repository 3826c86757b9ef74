package engine

import "time"

// ZoneKind identifies which overlap region of an obstacle was entered
type ZoneKind string

const (
	ZoneMain ZoneKind = "main"
	ZoneFail ZoneKind = "fail"
)

// Actor tags used to filter overlap events
const (
	PlayerTag   = "Player"
	ObstacleTag = "Obstacle"
)

// ObstaclePhase is the resolution state of a single obstacle
type ObstaclePhase string

const (
	PhaseArmed       ObstaclePhase = "armed"
	PhaseFailPending ObstaclePhase = "fail_pending"
)

// Resolution selects how an obstacle decides success or failure
type Resolution string

const (
	// ResolutionZones charges the penalty on fail-zone entry and awards points
	// on a clean main-zone entry.
	ResolutionZones Resolution = "zones"
	// ResolutionHeight judges the main-zone entry by the player's height above
	// the obstacle; the fail zone is unused.
	ResolutionHeight Resolution = "height"
)

// BrakeMode selects how braking decelerates the skater
type BrakeMode string

const (
	BrakeModeTick  BrakeMode = "tick"  // brakeRate * deltaTime every tick
	BrakeModePulse BrakeMode = "pulse" // fixed brakeRate every BrakePulseInterval
)

// ScoreFloor selects how subtraction behaves near zero
type ScoreFloor string

const (
	ScoreFloorNone   ScoreFloor = "none"   // total may go negative
	ScoreFloorZero   ScoreFloor = "zero"   // total is clamped at zero
	ScoreFloorLegacy ScoreFloor = "legacy" // subtraction skipped only when total is exactly zero
)

// Outcome describes what an overlap event did
type Outcome string

const (
	OutcomeCleared   Outcome = "cleared"
	OutcomeFailed    Outcome = "failed"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDebounced Outcome = "debounced"
)

const (
	DefaultBaseSpeed = 500.0

	MaxSpeedFactor = 2.1
	PushFactor     = 0.25
	BrakeFactor    = 0.125
	RecoveryFactor = 0.5
	PushLerpAlpha  = 0.25

	PushResetDelay     = 1500 * time.Millisecond
	BrakePulseInterval = 100 * time.Millisecond
	DebounceWindow     = 100 * time.Millisecond
	DefaultFailReset   = time.Second

	DefaultPositivePoints = 10
	DefaultNegativePoints = 5
	DefaultClearHeight    = 100.0

	// Validation constants
	MinBaseSpeed        = 1.0
	MaxBaseSpeed        = 10000.0
	MaxObstacles        = 256
	MaxPointValue       = 1000
	MaxBulkTicks        = 600
	MaxTickDelta        = 1.0
	WebSocketBufferSize = 256
)

// ZoneEvent is a begin-overlap notification delivered by the collision layer
type ZoneEvent struct {
	ObstacleID string   `json:"obstacle_id"`
	ActorTag   string   `json:"actor_tag"`
	Zone       ZoneKind `json:"zone"`
	// Height is the player's vertical offset above the obstacle at overlap time.
	Height float64 `json:"height,omitempty"`
}

// CollisionObserver receives zone-entry events from whatever collision layer drives the level
type CollisionObserver interface {
	OnZoneEnter(ev ZoneEvent) Outcome
}

// SpeedSink receives every speed change (the movement system's speed limit)
type SpeedSink interface {
	SetMaxWalkSpeed(speed float64)
}

// ScoreReporter is the scoring side of an obstacle's tracker reference
type ScoreReporter interface {
	AddScore(points int)
	SubtractScore(points int)
	Score() int
}

// ObstacleConfig describes one obstacle placement
type ObstacleConfig struct {
	ID             string     `json:"id" yaml:"id"`
	PositivePoints *int       `json:"positive_points,omitempty" yaml:"positive_points,omitempty"`
	NegativePoints *int       `json:"negative_points,omitempty" yaml:"negative_points,omitempty"`
	Resolution     Resolution `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	ClearHeight    float64    `json:"clear_height,omitempty" yaml:"clear_height,omitempty"`
}

// Points returns the clear and bail values. Unset values fall back to the
// defaults; an explicit 0 is kept.
func (o ObstacleConfig) Points() (positive, negative int) {
	return pointsOrDefault(o.PositivePoints, DefaultPositivePoints),
		pointsOrDefault(o.NegativePoints, DefaultNegativePoints)
}

// LevelMessages are the player-facing texts. Cleared/Failed/Confirmed take
// the obstacle id (%s) and the new total (%d).
type LevelMessages struct {
	Welcome   string `json:"welcome" yaml:"welcome"`
	Cleared   string `json:"cleared" yaml:"cleared"`
	Failed    string `json:"failed" yaml:"failed"`
	Confirmed string `json:"confirmed" yaml:"confirmed"`
}

// LevelConfig represents a level definition loaded from JSON or YAML
type LevelConfig struct {
	Name             string           `json:"name" yaml:"name"`
	Description      string           `json:"description" yaml:"description"`
	BaseSpeed        float64          `json:"base_speed" yaml:"base_speed"`
	BrakeMode        BrakeMode        `json:"brake_mode,omitempty" yaml:"brake_mode,omitempty"`
	ScoreFloor       ScoreFloor       `json:"score_floor,omitempty" yaml:"score_floor,omitempty"`
	FailResetSeconds float64          `json:"fail_reset_seconds,omitempty" yaml:"fail_reset_seconds,omitempty"`
	Obstacles        []ObstacleConfig `json:"obstacles" yaml:"obstacles"`
	Messages         LevelMessages    `json:"messages" yaml:"messages"`
}

// SkaterState is the serialized form of a SpeedController
type SkaterState struct {
	BaseSpeed     float64 `json:"base_speed"`
	MaxSpeed      float64 `json:"max_speed"`
	PushIncrement float64 `json:"push_increment"`
	BrakeRate     float64 `json:"brake_rate"`
	RecoveryRate  float64 `json:"recovery_rate"`
	CurrentSpeed  float64 `json:"current_speed"`
	IsPushing     bool    `json:"is_pushing"`
	IsBraking     bool    `json:"is_braking"`
}

// ObstacleState is the serialized form of an Obstacle
type ObstacleState struct {
	ID             string        `json:"id"`
	Phase          ObstaclePhase `json:"phase"`
	CoolingDown    bool          `json:"cooling_down,omitempty"`
	Resolution     Resolution    `json:"resolution"`
	PositivePoints int           `json:"positive_points"`
	NegativePoints int           `json:"negative_points"`
	Clears         int           `json:"clears"`
	Fails          int           `json:"fails"`
}

// ScoreEvent records one scoring resolution
type ScoreEvent struct {
	ID         string  `json:"id"`
	Kind       Outcome `json:"kind"`
	ObstacleID string  `json:"obstacle_id"`
	Points     int     `json:"points"` // signed delta requested by the obstacle
	Total      int     `json:"total"`
	Scored     bool    `json:"scored"` // false when no tracker was wired
	SimTime    float64 `json:"sim_time"`
	Number     int     `json:"number"`
}

// LevelState represents the complete level state
type LevelState struct {
	ConfigName   string          `json:"config_name"`
	SimTime      float64         `json:"sim_time"`
	Ticks        int             `json:"ticks"`
	Skater       SkaterState     `json:"skater"`
	MaxWalkSpeed float64         `json:"max_walk_speed"`
	Score        int             `json:"score"`
	Obstacles    []ObstacleState `json:"obstacles"`
	Message      string          `json:"message"`
	History      []ScoreEvent    `json:"history"`
	TotalEvents  int             `json:"total_events"`
}
