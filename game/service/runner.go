package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
)

// TickUpdate reports a session whose level changed during a runner step
type TickUpdate struct {
	SessionID    string
	State        *engine.LevelState
	ScoreChanges []int
}

// UpdateFunc receives runner updates. It is called from the runner goroutine
// after every step, once per changed session.
type UpdateFunc func(update TickUpdate)

// Runner ticks every live session at a fixed rate on a worker pool, so
// timers such as push resets progress without clients sending ticks.
type Runner struct {
	sessions SessionManager
	interval time.Duration
	pool     *ants.Pool
	onUpdate UpdateFunc
	log      logger.Logger
}

// NewRunner creates a runner stepping sessions every interval with up to
// workers concurrent session ticks.
func NewRunner(sessions SessionManager, interval time.Duration, workers int, log logger.Logger) (*Runner, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: runner interval must be positive", ErrInvalidInput)
	}
	if time.Duration(engine.MaxTickDelta*float64(time.Second)) < interval {
		return nil, fmt.Errorf("%w: runner interval must not exceed %gs", ErrInvalidInput, engine.MaxTickDelta)
	}
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = logger.NewNop()
	}

	pool, err := ants.NewPool(
		workers,
		ants.WithPreAlloc(true),
		ants.WithPanicHandler(func(p interface{}) {
			log.Error("panic while ticking session", logger.String("panic", fmt.Sprint(p)))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner pool: %w", err)
	}

	return &Runner{
		sessions: sessions,
		interval: interval,
		pool:     pool,
		log:      log,
	}, nil
}

// OnUpdate registers the update callback
func (r *Runner) OnUpdate(fn UpdateFunc) {
	r.onUpdate = fn
}

// Step ticks every session once and returns the ids of sessions whose speed,
// score or history changed, sorted.
func (r *Runner) Step(ctx context.Context) []string {
	dt := r.interval.Seconds()
	sessions := r.sessions.List()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		updates []TickUpdate
	)

	for _, sess := range sessions {
		if ctx.Err() != nil {
			break
		}
		sess := sess
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			if update, changed := tickSession(sess, dt); changed {
				mu.Lock()
				updates = append(updates, update)
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			r.log.Warn("failed to schedule session tick", logger.String("session", sess.ID), logger.Err(err))
		}
	}
	wg.Wait()

	sort.Slice(updates, func(i, j int) bool { return updates[i].SessionID < updates[j].SessionID })

	changed := make([]string, 0, len(updates))
	for _, u := range updates {
		changed = append(changed, u.SessionID)
		if r.onUpdate != nil {
			r.onUpdate(u)
		}
	}
	return changed
}

func tickSession(sess *Session, dt float64) (TickUpdate, bool) {
	update := TickUpdate{SessionID: sess.ID}
	changed := false

	sess.Do(func(level *engine.Level) {
		before := level.GetState()
		unsubscribe := level.SubscribeScore(func(total int) {
			update.ScoreChanges = append(update.ScoreChanges, total)
		})
		level.Tick(dt)
		unsubscribe()

		after := level.GetState()
		changed = after.Skater != before.Skater ||
			after.Score != before.Score ||
			after.TotalEvents != before.TotalEvents
		update.State = after
	})
	return update, changed
}

// Run steps sessions until ctx is cancelled
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("runner started",
		logger.Duration("interval", r.interval),
		logger.Int("workers", r.pool.Cap()))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("runner stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Step(ctx)
		}
	}
}

// Close releases the worker pool
func (r *Runner) Close() {
	r.pool.Release()
}
