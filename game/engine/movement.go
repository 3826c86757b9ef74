package engine

import (
	"math"
	"time"

	"github.com/wricardo/mcp-training/skatesim/game/clock"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
)

// SpeedController owns the skater's current speed. All speed changes go
// through UpdateSpeed, which clamps to [0, MaxSpeed] and feeds the sink.
type SpeedController struct {
	baseSpeed     float64
	maxSpeed      float64
	pushIncrement float64
	brakeRate     float64
	recoveryRate  float64

	currentSpeed float64
	isPushing    bool
	isBraking    bool

	brakeMode  BrakeMode
	pushReset  clock.Handle
	brakePulse clock.Handle

	sched clock.Scheduler
	sink  SpeedSink
	log   logger.Logger
}

// NewSpeedController derives every rate from baseSpeed and starts at baseSpeed.
func NewSpeedController(baseSpeed float64, mode BrakeMode, sched clock.Scheduler, sink SpeedSink, log logger.Logger) *SpeedController {
	if baseSpeed <= 0 || math.IsNaN(baseSpeed) || math.IsInf(baseSpeed, 0) {
		baseSpeed = DefaultBaseSpeed
	}
	if mode == "" {
		mode = BrakeModeTick
	}
	if log == nil {
		log = logger.NewNop()
	}

	c := &SpeedController{
		baseSpeed:     baseSpeed,
		maxSpeed:      baseSpeed * MaxSpeedFactor,
		pushIncrement: baseSpeed * PushFactor,
		brakeRate:     baseSpeed * BrakeFactor,
		recoveryRate:  baseSpeed * RecoveryFactor,
		currentSpeed:  baseSpeed,
		brakeMode:     mode,
		sched:         sched,
		sink:          sink,
		log:           log,
	}
	c.feedSink()
	return c
}

// OnTick advances speed by one frame of deltaTime seconds.
//
// Braking decelerates toward zero; otherwise a skater at or below base speed
// recovers toward it. A push-boosted speed above base is left unchanged until
// the push reset or a brake brings it down.
func (c *SpeedController) OnTick(deltaTime float64) {
	if deltaTime < 0 || math.IsNaN(deltaTime) || math.IsInf(deltaTime, 0) {
		deltaTime = 0
	}

	if c.isBraking {
		if c.brakeMode == BrakeModeTick && c.currentSpeed > 0 {
			c.UpdateSpeed(-c.brakeRate*deltaTime, c.baseSpeed)
		}
		return
	}

	if c.currentSpeed <= c.baseSpeed {
		c.UpdateSpeed(c.recoveryRate*deltaTime, c.baseSpeed)
	}
}

// StartPush applies a push boost and (re)arms the reset back to base speed.
func (c *SpeedController) StartPush() {
	if c.currentSpeed < c.maxSpeed {
		target := math.Min(c.currentSpeed+c.pushIncrement, c.maxSpeed)
		c.currentSpeed += PushLerpAlpha * (target - c.currentSpeed)
		c.UpdateSpeed(c.pushIncrement, c.currentSpeed+c.pushIncrement)
		c.isPushing = true
		c.log.Debug("push", logger.Float64("speed", c.currentSpeed))
	}

	c.cancel(&c.pushReset)
	if c.sched != nil {
		c.pushReset = c.sched.After(PushResetDelay, c.ResetAfterPush)
	}
}

// ResetAfterPush returns speed toward base and ends the push.
func (c *SpeedController) ResetAfterPush() {
	c.cancel(&c.pushReset)
	c.UpdateSpeed(0, c.baseSpeed)
	c.isPushing = false
}

// StartBrake begins braking. A brake supersedes any pending push reset.
func (c *SpeedController) StartBrake() {
	if c.isPushing || (c.pushReset != nil && c.pushReset.Active()) {
		c.cancel(&c.pushReset)
		c.isPushing = false
	}

	if c.brakeMode == BrakeModePulse {
		if c.currentSpeed <= 0 {
			return
		}
		c.isBraking = true
		c.cancel(&c.brakePulse)
		if c.sched != nil {
			c.brakePulse = c.sched.Every(BrakePulseInterval, c.applyBrakePulse)
		}
		return
	}

	c.isBraking = true
}

// StopBrake releases the brake and stops any repeating brake timer. A boost
// the brake never got to bleed off is handed back to the push reset.
func (c *SpeedController) StopBrake() {
	c.isBraking = false
	c.cancel(&c.brakePulse)

	if c.currentSpeed > c.baseSpeed && c.sched != nil && (c.pushReset == nil || !c.pushReset.Active()) {
		c.pushReset = c.sched.After(PushResetDelay, c.ResetAfterPush)
	}
}

// OnMoveInput handles steering input: a fully stopped skater who is not
// braking rolls off at base speed, and an idle skater is held to base speed.
func (c *SpeedController) OnMoveInput() {
	if c.currentSpeed == 0 && !c.isBraking {
		c.currentSpeed = c.baseSpeed
		c.feedSink()
	}
	if !c.isPushing && !c.isBraking {
		c.UpdateSpeed(0, c.baseSpeed)
	}
}

// UpdateSpeed is the single clamp-update primitive:
// current = clamp(current+delta, 0, min(ceiling, MaxSpeed)).
func (c *SpeedController) UpdateSpeed(delta, ceiling float64) {
	if math.IsNaN(delta) {
		delta = 0
	}
	ceiling = clamp(ceiling, 0, c.maxSpeed)
	c.currentSpeed = clamp(c.currentSpeed+delta, 0, ceiling)
	c.feedSink()
}

// applyBrakePulse is the pulse-mode brake step; it stops itself at zero.
func (c *SpeedController) applyBrakePulse() {
	if c.isBraking {
		c.UpdateSpeed(-c.brakeRate, c.currentSpeed)
	}
	if c.currentSpeed <= 0 {
		c.currentSpeed = 0
		c.isBraking = false
		c.cancel(&c.brakePulse)
		c.log.Debug("speed reached zero after braking")
	}
}

func (c *SpeedController) cancel(h *clock.Handle) {
	if *h != nil {
		(*h).Cancel()
		*h = nil
	}
}

func (c *SpeedController) feedSink() {
	if c.sink != nil {
		c.sink.SetMaxWalkSpeed(c.currentSpeed)
	}
}

// CurrentSpeed returns the current speed
func (c *SpeedController) CurrentSpeed() float64 { return c.currentSpeed }

// BaseSpeed returns the resting speed
func (c *SpeedController) BaseSpeed() float64 { return c.baseSpeed }

// MaxSpeed returns the push ceiling
func (c *SpeedController) MaxSpeed() float64 { return c.maxSpeed }

// PushIncrement returns the per-push increment
func (c *SpeedController) PushIncrement() float64 { return c.pushIncrement }

// BrakeRate returns the brake deceleration
func (c *SpeedController) BrakeRate() float64 { return c.brakeRate }

// RecoveryRate returns the recovery acceleration
func (c *SpeedController) RecoveryRate() float64 { return c.recoveryRate }

// IsPushing reports whether a push is active
func (c *SpeedController) IsPushing() bool { return c.isPushing }

// IsBraking reports whether the brake is held
func (c *SpeedController) IsBraking() bool { return c.isBraking }

// State returns a serializable snapshot
func (c *SpeedController) State() SkaterState {
	return SkaterState{
		BaseSpeed:     c.baseSpeed,
		MaxSpeed:      c.maxSpeed,
		PushIncrement: c.pushIncrement,
		BrakeRate:     c.brakeRate,
		RecoveryRate:  c.recoveryRate,
		CurrentSpeed:  c.currentSpeed,
		IsPushing:     c.isPushing,
		IsBraking:     c.isBraking,
	}
}

// restore applies a snapshot. Timers are not part of a snapshot, so an active
// push gets a fresh reset and a pulse brake restarts.
func (c *SpeedController) restore(s SkaterState) {
	c.cancel(&c.pushReset)
	c.cancel(&c.brakePulse)

	c.currentSpeed = clamp(s.CurrentSpeed, 0, c.maxSpeed)
	c.isPushing = false
	c.isBraking = false

	if s.IsPushing {
		c.isPushing = true
		if c.sched != nil {
			c.pushReset = c.sched.After(PushResetDelay, c.ResetAfterPush)
		}
	}
	if s.IsBraking {
		if c.brakeMode == BrakeModePulse {
			c.StartBrake()
		} else {
			c.isBraking = true
		}
	}
	c.feedSink()
}

// secondsToDuration converts a simulation delta in seconds to a Duration
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
