// Command analyze prints quick, human-readable heuristics about level
// configuration files: the derived speed model, how many pushes reach top
// speed, how long a brake takes to stop the skater, and the obstacle scoring
// table with its score bounds. The speed subcommand replays a scripted input
// timeline against a headless level.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
)

const (
	maxPushes   = 100
	maxStopTime = 60.0
	sampleDelta = 0.05
)

// SpeedProfile summarizes how a config's skater accelerates and stops
type SpeedProfile struct {
	Base         float64
	Max          float64
	Push         float64
	Brake        float64
	Recovery     float64
	PushesToTop  int
	PushCurve    []float64
	StopSeconds  float64
	RecoverySecs float64
}

// TimelineStep is one scripted input at a simulated time
type TimelineStep struct {
	Action string
	At     float64
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Summarize level configurations",
		ArgsUsage: "[config files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory scanned when no files are given",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				found, err := listConfigs(cmd.String("config-dir"))
				if err != nil {
					return err
				}
				files = found
			}
			if len(files) == 0 {
				return fmt.Errorf("no level configs found in %s", cmd.String("config-dir"))
			}

			out := cmd.Root().Writer
			for _, f := range files {
				fmt.Fprintf(out, "\n=== Analyzing %s ===\n", filepath.Base(f))
				analyzeConfig(out, f)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "speed",
				Usage:     "Replay an input timeline and print the speed curve",
				ArgsUsage: "[config file]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "script",
						Value: "push@0,push@0.5,brake@2,release@3",
						Usage: "comma separated action@seconds (push, brake, release, move)",
					},
					&cli.FloatFlag{Name: "dt", Value: 0.1, Usage: "tick length in seconds"},
					&cli.FloatFlag{Name: "duration", Value: 4, Usage: "seconds to simulate"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					config := engine.DefaultLevelConfig()
					if cmd.Args().Len() > 0 {
						loaded, err := loadConfig(cmd.Args().First())
						if err != nil {
							return err
						}
						config = loaded
					}
					steps, err := parseScript(cmd.String("script"))
					if err != nil {
						return err
					}
					return runTimeline(cmd.Root().Writer, config, steps, cmd.Float("dt"), cmd.Float("duration"))
				},
			},
		},
	}
}

func listConfigs(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func loadConfig(path string) (*engine.LevelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	config, err := engine.ParseLevelConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return config, nil
}

func analyzeConfig(out io.Writer, path string) {
	config, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(out, "Name: %s\n", config.Name)
	if err := engine.ValidateLevelConfig(config); err != nil {
		fmt.Fprintf(out, "⚠️  %v\n", err)
		return
	}

	profile, err := profileSpeed(config)
	if err != nil {
		fmt.Fprintf(out, "Error building level: %v\n", err)
		return
	}

	brakeMode := config.BrakeMode
	if brakeMode == "" {
		brakeMode = engine.BrakeModeTick
	}
	floor := config.ScoreFloor
	if floor == "" {
		floor = engine.ScoreFloorNone
	}

	fmt.Fprintf(out, "Base Speed: %.2f  Max Speed: %.2f\n", profile.Base, profile.Max)
	fmt.Fprintf(out, "Push: +%.2f  Brake: %.2f (%s)  Recovery: %.2f/s\n", profile.Push, profile.Brake, brakeMode, profile.Recovery)
	fmt.Fprintf(out, "Pushes to top speed: %d (%s)\n", profile.PushesToTop, formatCurve(profile.PushCurve))
	fmt.Fprintf(out, "Brake from base to stop: %.2fs\n", profile.StopSeconds)
	fmt.Fprintf(out, "Recovery from stop to base: %.2fs\n", profile.RecoverySecs)

	fmt.Fprintf(out, "\nObstacles (%d):\n", len(config.Obstacles))
	fmt.Fprintf(out, "  %-12s %-10s %6s %6s %s\n", "ID", "RULE", "CLEAR", "BAIL", "HEIGHT")
	for _, o := range config.Obstacles {
		rule := o.Resolution
		if rule == "" {
			rule = engine.ResolutionZones
		}
		height := "-"
		if rule == engine.ResolutionHeight {
			h := o.ClearHeight
			if h <= 0 {
				h = engine.DefaultClearHeight
			}
			height = fmt.Sprintf("> %.0f", h)
		}
		positive, negative := o.Points()
		fmt.Fprintf(out, "  %-12s %-10s %+6d %+6d %s\n", o.ID, rule, positive, -negative, height)
	}

	maxScore := engine.MaxAchievableScore(config)
	minScore := engine.MinAchievableScore(config)
	if floor == engine.ScoreFloorZero {
		minScore = 0
	}
	fmt.Fprintf(out, "\nScore range: %d to %d (floor: %s)\n", minScore, maxScore, floor)
	if floor == engine.ScoreFloorLegacy {
		fmt.Fprintln(out, "⚠️  legacy floor only skips a penalty when the total is exactly 0")
	}
	fmt.Fprintln(out, "✅ Config is playable")
}

// profileSpeed measures the speed model by driving a headless level
func profileSpeed(config *engine.LevelConfig) (SpeedProfile, error) {
	level, err := engine.NewLevel(config, logger.NewNop())
	if err != nil {
		return SpeedProfile{}, err
	}

	s := level.GetState().Skater
	profile := SpeedProfile{
		Base:     s.BaseSpeed,
		Max:      s.MaxSpeed,
		Push:     s.PushIncrement,
		Brake:    s.BrakeRate,
		Recovery: s.RecoveryRate,
	}

	speed := func() float64 { return level.Speed().CurrentSpeed() }

	for profile.PushesToTop < maxPushes && speed() < s.MaxSpeed {
		level.Push()
		profile.PushesToTop++
		profile.PushCurve = append(profile.PushCurve, speed())
	}

	level.Reset()
	level.StartBrake()
	profile.StopSeconds = runUntil(level, func() bool { return speed() <= 0 })
	level.StopBrake()
	profile.RecoverySecs = runUntil(level, func() bool { return speed() >= s.BaseSpeed })

	return profile, nil
}

// runUntil ticks the level until done reports true and returns the simulated
// seconds it took
func runUntil(level *engine.Level, done func() bool) float64 {
	elapsed := 0.0
	for !done() && elapsed < maxStopTime {
		level.Tick(sampleDelta)
		elapsed += sampleDelta
	}
	return elapsed
}

func parseScript(script string) ([]TimelineStep, error) {
	var steps []TimelineStep
	for _, part := range strings.Split(script, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		action, at, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("step %q: expected action@seconds", part)
		}
		switch action {
		case "push", "brake", "release", "move":
		default:
			return nil, fmt.Errorf("step %q: unknown action %q", part, action)
		}
		seconds, err := strconv.ParseFloat(at, 64)
		if err != nil || seconds < 0 {
			return nil, fmt.Errorf("step %q: invalid time %q", part, at)
		}
		steps = append(steps, TimelineStep{Action: action, At: seconds})
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })
	return steps, nil
}

func runTimeline(out io.Writer, config *engine.LevelConfig, steps []TimelineStep, dt, duration float64) error {
	if dt <= 0 || dt > engine.MaxTickDelta {
		return fmt.Errorf("dt must be in (0, %g], got %g", engine.MaxTickDelta, dt)
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", duration)
	}

	level, err := engine.NewLevel(config, logger.NewNop())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%-7s %-8s %9s  %-9s %s\n", "TIME", "INPUT", "SPEED", "BAND", "FLAGS")
	next := 0
	ticks := int(duration/dt + 0.5)
	for i := 0; i <= ticks; i++ {
		now := float64(i) * dt
		var inputs []string
		for next < len(steps) && steps[next].At <= now+1e-9 {
			applyAction(level, steps[next].Action)
			inputs = append(inputs, steps[next].Action)
			next++
		}

		s := level.GetState().Skater
		var flags []string
		if s.IsPushing {
			flags = append(flags, "pushing")
		}
		if s.IsBraking {
			flags = append(flags, "braking")
		}
		fmt.Fprintf(out, "%-7.2f %-8s %9.2f  %-9s %s\n", now, strings.Join(inputs, "+"), s.CurrentSpeed, engine.SpeedBand(s), strings.Join(flags, ","))

		if i < ticks {
			level.Tick(dt)
		}
	}
	return nil
}

func applyAction(level *engine.Level, action string) {
	switch action {
	case "push":
		level.Push()
	case "brake":
		level.StartBrake()
	case "release":
		level.StopBrake()
	case "move":
		level.MoveInput()
	}
}

func formatCurve(curve []float64) string {
	parts := make([]string, len(curve))
	for i, v := range curve {
		parts[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	return strings.Join(parts, " → ")
}
