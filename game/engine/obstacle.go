package engine

import (
	"time"

	"github.com/wricardo/mcp-training/skatesim/game/clock"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
)

// resolveFunc is invoked after an obstacle resolves an attempt. points is the
// signed delta requested from the tracker; scored is false when no tracker
// was wired.
type resolveFunc func(o *Obstacle, kind Outcome, points int, scored bool)

// Obstacle judges jump attempts over one obstacle using a main zone and a
// fail zone.
//
// In zones mode a fail-zone entry charges the penalty immediately and leaves
// the obstacle FailPending; the following main-zone entry confirms it.
// A clean main-zone entry awards the positive points. Every main-zone
// resolution opens a short debounce window during which further entries for
// this obstacle are ignored.
type Obstacle struct {
	id             string
	positivePoints int
	negativePoints int
	resolution     Resolution
	clearHeight    float64
	failReset      time.Duration

	phase       ObstaclePhase
	coolingDown bool
	clears      int
	fails       int

	debounce   clock.Handle
	failExpiry clock.Handle

	tracker   ScoreReporter
	sched     clock.Scheduler
	onResolve resolveFunc
	log       logger.Logger
}

// NewObstacle creates an armed obstacle from its configuration. Zero point
// values fall back to the defaults.
func NewObstacle(cfg ObstacleConfig, failReset time.Duration, sched clock.Scheduler, log logger.Logger) *Obstacle {
	if log == nil {
		log = logger.NewNop()
	}
	resolution := cfg.Resolution
	if resolution == "" {
		resolution = ResolutionZones
	}
	clearHeight := cfg.ClearHeight
	if clearHeight <= 0 {
		clearHeight = DefaultClearHeight
	}
	if failReset <= 0 {
		failReset = DefaultFailReset
	}
	positive, negative := cfg.Points()

	return &Obstacle{
		id:             cfg.ID,
		positivePoints: positive,
		negativePoints: negative,
		resolution:     resolution,
		clearHeight:    clearHeight,
		failReset:      failReset,
		phase:          PhaseArmed,
		sched:          sched,
		log:            log.With(logger.String("obstacle", cfg.ID)),
	}
}

// SetScoreTracker wires the tracker that receives this obstacle's points
func (o *Obstacle) SetScoreTracker(t ScoreReporter) {
	o.tracker = t
}

// OnZoneEnter dispatches a zone event to the matching handler
func (o *Obstacle) OnZoneEnter(ev ZoneEvent) Outcome {
	switch ev.Zone {
	case ZoneMain:
		return o.OnMainZoneEnter(ev.ActorTag, ev.Height)
	case ZoneFail:
		return o.OnFailZoneEnter(ev.ActorTag)
	default:
		o.log.Warn("unknown zone", logger.String("zone", string(ev.Zone)))
		return OutcomeIgnored
	}
}

// OnFailZoneEnter handles the player touching the fail zone
func (o *Obstacle) OnFailZoneEnter(tag string) Outcome {
	if tag != PlayerTag || o.resolution == ResolutionHeight {
		return OutcomeIgnored
	}
	if o.coolingDown {
		return OutcomeDebounced
	}
	if o.phase == PhaseFailPending {
		return OutcomeIgnored
	}

	o.phase = PhaseFailPending
	o.fails++
	scored := o.subtract()
	o.armFailExpiry()
	o.log.Debug("fail zone entered", logger.Int("fails", o.fails))
	o.notify(OutcomeFailed, -o.negativePoints, scored)
	return OutcomeFailed
}

// OnMainZoneEnter handles the player reaching the main zone. height is only
// consulted in height resolution mode.
func (o *Obstacle) OnMainZoneEnter(tag string, height float64) Outcome {
	if tag != PlayerTag {
		return OutcomeIgnored
	}
	if o.coolingDown {
		return OutcomeDebounced
	}

	var (
		kind   Outcome
		points int
		scored bool
	)

	switch {
	case o.resolution == ResolutionHeight && height > o.clearHeight:
		o.clears++
		kind, points, scored = OutcomeCleared, o.positivePoints, o.add()
	case o.resolution == ResolutionHeight:
		o.fails++
		kind, points, scored = OutcomeFailed, -o.negativePoints, o.subtract()
	case o.phase == PhaseFailPending:
		// penalty was already charged on fail-zone entry
		kind, scored = OutcomeConfirmed, o.tracker != nil
	default:
		o.clears++
		kind, points, scored = OutcomeCleared, o.positivePoints, o.add()
	}

	o.cancel(&o.failExpiry)
	o.phase = PhaseArmed
	o.startDebounce()

	o.log.Debug("main zone resolved", logger.String("outcome", string(kind)))
	o.notify(kind, points, scored)
	return kind
}

func (o *Obstacle) add() bool {
	if o.tracker == nil {
		o.log.Warn("no score tracker wired, clear not scored")
		return false
	}
	o.tracker.AddScore(o.positivePoints)
	return true
}

func (o *Obstacle) subtract() bool {
	if o.tracker == nil {
		o.log.Warn("no score tracker wired, penalty not scored")
		return false
	}
	o.tracker.SubtractScore(o.negativePoints)
	return true
}

func (o *Obstacle) notify(kind Outcome, points int, scored bool) {
	if o.onResolve != nil {
		o.onResolve(o, kind, points, scored)
	}
}

// startDebounce opens (or extends) the window that ignores further entries
func (o *Obstacle) startDebounce() {
	if o.sched == nil {
		return
	}
	o.cancel(&o.debounce)
	o.coolingDown = true
	o.debounce = o.sched.After(DebounceWindow, func() {
		o.coolingDown = false
		o.phase = PhaseArmed
		o.debounce = nil
	})
}

// armFailExpiry re-arms an obstacle whose fail was never followed by a
// main-zone entry.
func (o *Obstacle) armFailExpiry() {
	if o.sched == nil {
		return
	}
	o.cancel(&o.failExpiry)
	o.failExpiry = o.sched.After(o.failReset, func() {
		if o.phase == PhaseFailPending {
			o.phase = PhaseArmed
			o.log.Debug("fail flag expired")
		}
		o.failExpiry = nil
	})
}

func (o *Obstacle) cancel(h *clock.Handle) {
	if *h != nil {
		(*h).Cancel()
		*h = nil
	}
}

// ID returns the obstacle id
func (o *Obstacle) ID() string { return o.id }

// Phase returns the current resolution phase
func (o *Obstacle) Phase() ObstaclePhase { return o.phase }

// CoolingDown reports whether the debounce window is open
func (o *Obstacle) CoolingDown() bool { return o.coolingDown }

// PositivePoints returns the points awarded for a clear
func (o *Obstacle) PositivePoints() int { return o.positivePoints }

// NegativePoints returns the points charged for a fail
func (o *Obstacle) NegativePoints() int { return o.negativePoints }

// State returns a serializable snapshot
func (o *Obstacle) State() ObstacleState {
	return ObstacleState{
		ID:             o.id,
		Phase:          o.phase,
		CoolingDown:    o.coolingDown,
		Resolution:     o.resolution,
		PositivePoints: o.positivePoints,
		NegativePoints: o.negativePoints,
		Clears:         o.clears,
		Fails:          o.fails,
	}
}

// restore applies a snapshot. Debounce windows are not carried over; a
// pending fail gets a fresh expiry.
func (o *Obstacle) restore(s ObstacleState) {
	o.cancel(&o.debounce)
	o.cancel(&o.failExpiry)
	o.coolingDown = false
	o.clears = s.Clears
	o.fails = s.Fails
	o.phase = PhaseArmed
	if s.Phase == PhaseFailPending && o.resolution == ResolutionZones {
		o.phase = PhaseFailPending
		o.armFailExpiry()
	}
}
