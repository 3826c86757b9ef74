package main

import (
	"math/rand"
	"sort"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
)

// ObstaclePlan is what the bot knows about one obstacle on its line
type ObstaclePlan struct {
	ID          string
	Resolution  engine.Resolution
	ClearHeight float64
	Points      int
	Penalty     int
}

// Attempt is the sequence of zone events the bot sends for one obstacle
type Attempt struct {
	ObstacleID string
	Bail       bool
	Events     []engine.ZoneEvent
}

// RideStrategy orders the obstacles and decides how each one is attempted.
// A bail is rolled per attempt; every clean landing on an obstacle halves
// the bail chance there.
type RideStrategy struct {
	line         []ObstaclePlan
	bailRate     float64
	heightMargin float64
	pushes       int
	rng          *rand.Rand
	clears       map[string]int
	bails        map[string]int
}

func NewRideStrategy(config *engine.LevelConfig, bailRate float64, seed int64) *RideStrategy {
	s := &RideStrategy{
		bailRate:     bailRate,
		heightMargin: 20,
		pushes:       2,
		rng:          rand.New(rand.NewSource(seed)),
		clears:       make(map[string]int),
		bails:        make(map[string]int),
	}
	s.planLine(config)
	return s
}

// planLine puts the highest value obstacles first; ties keep config order
func (s *RideStrategy) planLine(config *engine.LevelConfig) {
	s.line = s.line[:0]
	for _, o := range config.Obstacles {
		resolution := o.Resolution
		if resolution == "" {
			resolution = engine.ResolutionZones
		}
		clearHeight := o.ClearHeight
		if clearHeight <= 0 {
			clearHeight = engine.DefaultClearHeight
		}
		positive, negative := o.Points()
		s.line = append(s.line, ObstaclePlan{
			ID:          o.ID,
			Resolution:  resolution,
			ClearHeight: clearHeight,
			Points:      positive,
			Penalty:     negative,
		})
	}
	sort.SliceStable(s.line, func(i, j int) bool {
		return s.line[i].Points > s.line[j].Points
	})
}

// Line returns the obstacles in riding order
func (s *RideStrategy) Line() []ObstaclePlan {
	return s.line
}

// PushesFor returns how many pushes to throw before the next obstacle
func (s *RideStrategy) PushesFor(skater engine.SkaterState) int {
	if skater.CurrentSpeed > skater.BaseSpeed {
		return 0
	}
	return s.pushes
}

// bailChance is the probability of bailing on an obstacle right now
func (s *RideStrategy) bailChance(id string) float64 {
	chance := s.bailRate
	for i := 0; i < s.clears[id]; i++ {
		chance /= 2
	}
	return chance
}

// NextAttempt rolls the attempt for an obstacle
func (s *RideStrategy) NextAttempt(o ObstaclePlan) Attempt {
	bail := s.bailRate > 0 && s.rng.Float64() < s.bailChance(o.ID)
	attempt := Attempt{ObstacleID: o.ID, Bail: bail}

	main := engine.ZoneEvent{ObstacleID: o.ID, ActorTag: engine.PlayerTag, Zone: engine.ZoneMain}
	switch {
	case o.Resolution == engine.ResolutionHeight && bail:
		main.Height = 0
		attempt.Events = []engine.ZoneEvent{main}
	case o.Resolution == engine.ResolutionHeight:
		main.Height = o.ClearHeight + s.heightMargin
		attempt.Events = []engine.ZoneEvent{main}
	case bail:
		fail := engine.ZoneEvent{ObstacleID: o.ID, ActorTag: engine.PlayerTag, Zone: engine.ZoneFail}
		attempt.Events = []engine.ZoneEvent{fail, main}
	default:
		attempt.Events = []engine.ZoneEvent{main}
	}
	return attempt
}

// Record feeds an attempt's result back into the strategy
func (s *RideStrategy) Record(a Attempt, outcome engine.Outcome) {
	switch outcome {
	case engine.OutcomeCleared:
		s.clears[a.ObstacleID]++
	case engine.OutcomeFailed, engine.OutcomeConfirmed:
		s.bails[a.ObstacleID]++
	}
}

// Stats returns total clean landings and bails recorded so far
func (s *RideStrategy) Stats() (clears, bails int) {
	for _, n := range s.clears {
		clears += n
	}
	for _, n := range s.bails {
		bails += n
	}
	return clears, bails
}
