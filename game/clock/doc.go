// Package clock provides the scheduler abstraction the simulation uses for
// delayed and repeating callbacks.
//
// The simulation never reads wall time. One-shot timers (push reset,
// obstacle debounce) and repeating timers (pulse braking) are registered
// against a Scheduler, and the Virtual implementation fires them only when
// the owner advances simulated time, which keeps every run deterministic:
//
//	clk := clock.NewVirtual()
//	h := clk.After(1500*time.Millisecond, resetPush)
//	clk.Advance(time.Second) // nothing fires
//	h.Cancel()               // superseded by a fresh push
package clock
