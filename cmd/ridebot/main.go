// Command ridebot rides a SkateSim session through the REST API. Each run
// resets the level, pushes up to speed before every obstacle and lands or
// bails according to a seeded strategy, until a run reaches the target score.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
	"github.com/wricardo/mcp-training/skatesim/game/service"
)

const sessionFile = ".session"

type rideOptions struct {
	RunUpDelta float64
	RunUpSteps int
	Delay      time.Duration
}

// RunReport summarizes one run down the line
type RunReport struct {
	Score  int
	Clears int
	Bails  int
}

// ride takes one pass over every obstacle on the strategy's line
func ride(ctx context.Context, c *Client, strategy *RideStrategy, skater engine.SkaterState, opts rideOptions, log logger.Logger) (RunReport, error) {
	var report RunReport

	for _, o := range strategy.Line() {
		for i := strategy.PushesFor(skater); i > 0; i-- {
			res, err := c.Input(ctx, service.ActionPush)
			if err != nil {
				return report, err
			}
			if res.LevelState != nil {
				skater = res.LevelState.Skater
			}
		}

		tick, err := c.Tick(ctx, opts.RunUpDelta, opts.RunUpSteps)
		if err != nil {
			return report, err
		}
		if tick.LevelState != nil {
			skater = tick.LevelState.Skater
		}

		attempt := strategy.NextAttempt(o)
		var outcome engine.Outcome
		for i, ev := range attempt.Events {
			res, err := c.Overlap(ctx, ev)
			if err != nil {
				return report, err
			}
			if i == 0 {
				outcome = res.Outcome
			}
			report.Score = res.Score
		}
		strategy.Record(attempt, outcome)

		switch outcome {
		case engine.OutcomeCleared:
			report.Clears++
		case engine.OutcomeFailed:
			report.Bails++
		}
		log.Debug("obstacle",
			logger.String("obstacle", o.ID),
			logger.String("outcome", string(outcome)),
			logger.Float64("speed", skater.CurrentSpeed),
			logger.Int("score", report.Score))

		if opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}
	return report, nil
}

// openSession resumes the saved or requested session, or creates a new one
func openSession(ctx context.Context, c *Client, resumeID, configID string, log logger.Logger) (*service.SessionInfo, error) {
	if resumeID == "" {
		if data, err := os.ReadFile(sessionFile); err == nil {
			resumeID = string(bytes.TrimSpace(data))
		}
	}

	if resumeID != "" {
		info, err := c.Resume(ctx, resumeID)
		if err == nil {
			log.Info("session resumed", logger.String("session", info.ID), logger.String("config", info.ConfigName))
			return info, nil
		}
		log.Warn("failed to resume session, creating a new one", logger.String("session", resumeID), logger.Err(err))
	}

	info, err := c.CreateSession(ctx, configID)
	if err != nil {
		return nil, err
	}
	log.Info("session created", logger.String("session", info.ID), logger.String("config", info.ConfigName))
	if err := os.WriteFile(sessionFile, []byte(info.ID), 0644); err != nil {
		log.Warn("failed to save session id", logger.Err(err))
	}
	return info, nil
}

// play resets and rides until a run reaches target or maxRuns is used up.
// It returns the number of the winning run.
func play(ctx context.Context, c *Client, strategy *RideStrategy, target, maxRuns int, opts rideOptions, log logger.Logger) (int, error) {
	for run := 1; run <= maxRuns; run++ {
		state, err := c.Reset(ctx)
		if err != nil {
			return 0, err
		}

		report, err := ride(ctx, c, strategy, state.Skater, opts, log)
		if err != nil {
			return 0, fmt.Errorf("run %d: %w", run, err)
		}

		log.Info("run finished",
			logger.Int("run", run),
			logger.Int("score", report.Score),
			logger.Int("target", target),
			logger.Int("clears", report.Clears),
			logger.Int("bails", report.Bails))

		if report.Score >= target {
			return run, nil
		}
	}
	return 0, fmt.Errorf("no run reached %d points in %d runs", target, maxRuns)
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Game server URL")
	configID := flag.String("config", "", "Level configuration id (default: server default)")
	continueSession := flag.String("continue", "", "Resume riding an existing session by ID")
	maxRuns := flag.Int("runs", 20, "Maximum runs before giving up")
	target := flag.Int("target", 0, "Score a run must reach (0 = every obstacle cleared)")
	bailRate := flag.Float64("bail", 0.3, "Chance of bailing on an obstacle before any clean landing")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for bail rolls")
	runUp := flag.Float64("run-up", 0.1, "Tick length of the run-up to each obstacle in seconds")
	runUpSteps := flag.Int("run-up-steps", 5, "Ticks of run-up before each obstacle")
	delayMs := flag.Int("delay", 0, "Delay between obstacles in milliseconds (0 = no delay)")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	cfg := logger.DevelopmentConfig()
	if !*verbose {
		cfg.Level = "info"
	}
	log, err := logger.NewZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info("connecting to game server", logger.String("url", *serverURL))
	client := NewClient(*serverURL)

	info, err := openSession(ctx, client, *continueSession, *configID, log)
	if err != nil {
		log.Error("failed to open session", logger.Err(err))
		os.Exit(1)
	}
	if info.LevelConfig == nil {
		log.Error("session has no level config", logger.String("session", info.ID))
		os.Exit(1)
	}

	goal := *target
	if goal <= 0 {
		goal = engine.MaxAchievableScore(info.LevelConfig)
	}

	strategy := NewRideStrategy(info.LevelConfig, *bailRate, *seed)
	opts := rideOptions{
		RunUpDelta: *runUp,
		RunUpSteps: *runUpSteps,
		Delay:      time.Duration(*delayMs) * time.Millisecond,
	}

	run, err := play(ctx, client, strategy, goal, *maxRuns, opts, log)
	clears, bails := strategy.Stats()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("interrupted", logger.String("session", client.SessionID()))
		} else {
			log.Error("giving up", logger.Err(err), logger.Int("clears", clears), logger.Int("bails", bails))
		}
		os.Exit(1)
	}

	log.Info("target reached",
		logger.Int("run", run),
		logger.Int("target", goal),
		logger.Int("clears", clears),
		logger.Int("bails", bails),
		logger.String("session", client.SessionID()))
}
