package clock

import "time"

// Handle controls a scheduled callback.
type Handle interface {
	// Cancel stops the callback. It reports whether the timer was still active.
	Cancel() bool
	// Active reports whether the callback may still fire.
	Active() bool
}

// Scheduler schedules callbacks against simulated time.
type Scheduler interface {
	// After runs fn once, d after now.
	After(d time.Duration, fn func()) Handle
	// Every runs fn every d until the returned handle is cancelled.
	Every(d time.Duration, fn func()) Handle
	// Now returns the elapsed simulated time.
	Now() time.Duration
}

type timer struct {
	due      time.Duration
	interval time.Duration // zero for one-shot
	seq      uint64
	fn       func()
	active   bool
}

func (t *timer) Cancel() bool {
	if !t.active {
		return false
	}
	t.active = false
	return true
}

func (t *timer) Active() bool {
	return t.active
}

// Virtual is a deterministic Scheduler driven by Advance. It is not safe for
// concurrent use; the owning simulation serializes access.
type Virtual struct {
	now    time.Duration
	seq    uint64
	timers []*timer
}

// NewVirtual returns a virtual clock at time zero.
func NewVirtual() *Virtual {
	return &Virtual{}
}

// Now returns the current simulated time.
func (v *Virtual) Now() time.Duration {
	return v.now
}

// After schedules fn to run once after d. Negative delays fire on the next Advance.
func (v *Virtual) After(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	return v.add(v.now+d, 0, fn)
}

// Every schedules fn to run every d. A non-positive interval would fire
// forever within a single Advance, so it yields an inactive handle.
func (v *Virtual) Every(d time.Duration, fn func()) Handle {
	if d <= 0 || fn == nil {
		return &timer{}
	}
	return v.add(v.now+d, d, fn)
}

func (v *Virtual) add(due, interval time.Duration, fn func()) *timer {
	if fn == nil {
		return &timer{}
	}
	v.seq++
	t := &timer{due: due, interval: interval, seq: v.seq, fn: fn, active: true}
	v.timers = append(v.timers, t)
	return t
}

// Advance moves time forward by d and fires every timer that comes due, in
// due-time order and then registration order. Callbacks run with Now set to
// their due time and may schedule or cancel other timers.
func (v *Virtual) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	target := v.now + d

	for {
		next := v.nextDue(target)
		if next == nil {
			break
		}
		v.now = next.due
		if next.interval > 0 {
			next.due += next.interval
			v.seq++
			next.seq = v.seq
		} else {
			next.active = false
		}
		next.fn()
	}

	v.now = target
	v.compact()
}

// Pending returns the number of active timers.
func (v *Virtual) Pending() int {
	n := 0
	for _, t := range v.timers {
		if t.active {
			n++
		}
	}
	return n
}

// nextDue returns the earliest active timer due at or before limit.
func (v *Virtual) nextDue(limit time.Duration) *timer {
	var best *timer
	for _, t := range v.timers {
		if !t.active || t.due > limit {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (v *Virtual) compact() {
	live := v.timers[:0]
	for _, t := range v.timers {
		if t.active {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(v.timers); i++ {
		v.timers[i] = nil
	}
	v.timers = live
}
