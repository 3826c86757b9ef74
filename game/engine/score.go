package engine

import "github.com/wricardo/mcp-training/skatesim/game/logger"

// ScoreListener is notified with the new total after every change
type ScoreListener func(total int)

type scoreSubscription struct {
	id int
	fn ScoreListener
}

// ScoreTracker accumulates the level score and publishes changes to observers.
// It has no reference back to the obstacles that feed it.
type ScoreTracker struct {
	total     int
	floor     ScoreFloor
	listeners []scoreSubscription
	nextID    int
	log       logger.Logger
}

// NewScoreTracker creates a tracker starting at zero
func NewScoreTracker(floor ScoreFloor, log logger.Logger) *ScoreTracker {
	if floor == "" {
		floor = ScoreFloorNone
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ScoreTracker{floor: floor, log: log}
}

// AddScore adds points and notifies observers
func (t *ScoreTracker) AddScore(points int) {
	if points < 0 {
		t.log.Warn("negative score addition ignored", logger.Int("points", points))
		return
	}
	t.apply(t.total + points)
}

// SubtractScore removes points according to the floor policy and notifies
// observers if the total changed.
func (t *ScoreTracker) SubtractScore(points int) {
	if points < 0 {
		t.log.Warn("negative score subtraction ignored", logger.Int("points", points))
		return
	}

	next := t.total - points
	switch t.floor {
	case ScoreFloorZero:
		if next < 0 {
			next = 0
		}
	case ScoreFloorLegacy:
		if t.total == 0 {
			t.log.Debug("subtraction skipped at zero total", logger.Int("points", points))
			return
		}
	}
	t.apply(next)
}

// Score returns the current total
func (t *ScoreTracker) Score() int {
	return t.total
}

// Floor returns the subtraction policy
func (t *ScoreTracker) Floor() ScoreFloor {
	return t.floor
}

// Subscribe registers fn for score-changed notifications. The returned func
// removes the subscription.
func (t *ScoreTracker) Subscribe(fn ScoreListener) func() {
	if fn == nil {
		return func() {}
	}
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, scoreSubscription{id: id, fn: fn})

	return func() {
		for i, l := range t.listeners {
			if l.id == id {
				t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

// set overwrites the total without notifying (used when restoring a snapshot)
func (t *ScoreTracker) set(total int) {
	t.total = total
}

func (t *ScoreTracker) apply(next int) {
	if next == t.total {
		return
	}
	t.total = next
	t.log.Debug("score updated", logger.Int("total", next))

	// Copy so listeners may unsubscribe during delivery
	listeners := append([]scoreSubscription(nil), t.listeners...)
	for _, l := range listeners {
		l.fn(next)
	}
}
