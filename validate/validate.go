// Command validate checks level configuration files (JSON or YAML) in the
// ../configs directory, or the directory given as the first argument. It checks:
//   - parsing and the engine's schema validation
//   - config id vs. file name clashes between .json and .yaml copies
//   - message templates render with an obstacle id and a score
//   - playability: a headless ride clears and then bails every obstacle and
//     checks the score moves by the configured points
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/skatesim/game/engine"
	"github.com/wricardo/mcp-training/skatesim/game/logger"
)

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Notes are informational.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Notes  []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.ParseLevelConfig(data, filepath.Ext(filePath))
	if err != nil {
		result.fail("Invalid %s: %v", strings.TrimPrefix(filepath.Ext(filePath), "."), err)
		return result
	}

	if err := engine.ValidateLevelConfig(config); err != nil {
		result.fail("%v", err)
		return result
	}

	for _, w := range lintConfig(config) {
		result.note("⚠ %s", w)
	}

	ride := validateRide(config)
	if !ride.Valid {
		result.Valid = false
		result.Errors = append(result.Errors, ride.Errors...)
		return result
	}
	result.Notes = append(result.Notes, ride.Notes...)

	base := config.BaseSpeed
	if base == 0 {
		base = engine.DefaultBaseSpeed
	}
	result.note("✓ Name: %s", config.Name)
	result.note("✓ Base speed: %.0f (max %.0f)", base, base*engine.MaxSpeedFactor)
	result.note("✓ Obstacles: %d", len(config.Obstacles))
	result.note("✓ Score range: %d to %d", engine.MinAchievableScore(config), engine.MaxAchievableScore(config))
	return result
}

// lintConfig reports legal but suspicious settings
func lintConfig(config *engine.LevelConfig) []string {
	var warnings []string
	if config.ScoreFloor == engine.ScoreFloorLegacy {
		warnings = append(warnings, "score_floor legacy only guards an exact zero total; use zero for a real floor")
	}
	for _, o := range config.Obstacles {
		if o.Resolution == engine.ResolutionHeight && o.ClearHeight == 0 {
			warnings = append(warnings, fmt.Sprintf("obstacle %s: clear_height 0 uses the default %.0f", o.ID, engine.DefaultClearHeight))
		}
	}
	if strings.Contains(config.Messages.Welcome, "%") {
		warnings = append(warnings, "welcome message is not a template; '%' is shown literally")
	}
	return warnings
}

// validateRide builds the level and plays every obstacle once cleanly, then
// once with a bail, checking the score after each step
func validateRide(config *engine.LevelConfig) ValidationResult {
	result := ValidationResult{Valid: true}

	level, err := engine.NewLevel(config, logger.NewNop())
	if err != nil {
		result.fail("Level does not build: %v", err)
		return result
	}

	// Let each obstacle's debounce window close between attempts
	settle := func() {
		for i := 0; i < 3; i++ {
			level.Tick(0.1)
		}
	}

	for _, o := range config.Obstacles {
		before := level.Score()
		height := clearHeightFor(o) + 1
		outcome := level.OnZoneEnter(engine.ZoneEvent{ObstacleID: o.ID, ActorTag: engine.PlayerTag, Zone: engine.ZoneMain, Height: height})
		positive, _ := o.Points()
		want := before + positive
		if outcome != engine.OutcomeCleared || level.Score() != want {
			result.fail("Ride: clearing %s gave %s with score %d, expected cleared with %d", o.ID, outcome, level.Score(), want)
		}
		settle()
	}

	for _, o := range config.Obstacles {
		before := level.Score()
		var outcome engine.Outcome
		if o.Resolution == engine.ResolutionHeight {
			outcome = level.OnZoneEnter(engine.ZoneEvent{ObstacleID: o.ID, ActorTag: engine.PlayerTag, Zone: engine.ZoneMain, Height: 0})
		} else {
			outcome = level.OnZoneEnter(engine.ZoneEvent{ObstacleID: o.ID, ActorTag: engine.PlayerTag, Zone: engine.ZoneFail})
			level.OnZoneEnter(engine.ZoneEvent{ObstacleID: o.ID, ActorTag: engine.PlayerTag, Zone: engine.ZoneMain})
		}
		if outcome != engine.OutcomeFailed {
			result.fail("Ride: bailing on %s gave %s, expected failed", o.ID, outcome)
		}
		if config.ScoreFloor == "" || config.ScoreFloor == engine.ScoreFloorNone {
			_, negative := o.Points()
			if want := before - negative; level.Score() != want {
				result.fail("Ride: bailing on %s left score %d, expected %d", o.ID, level.Score(), want)
			}
		}
		settle()
	}

	if result.Valid {
		result.note("✓ Ride: %d obstacles cleared and bailed, final score %d", len(config.Obstacles), level.Score())
		for _, msg := range []string{config.Messages.Cleared, config.Messages.Failed, config.Messages.Confirmed} {
			if msg != "" {
				result.note("✓ Message: %q", engine.FormatMessage(msg, config.Obstacles[0].ID, level.Score()))
			}
		}
	}
	return result
}

func clearHeightFor(o engine.ObstacleConfig) float64 {
	if o.ClearHeight > 0 {
		return o.ClearHeight
	}
	return engine.DefaultClearHeight
}

// configFiles lists level configs in dir and reports ids defined by more
// than one file
func configFiles(dir string) ([]string, []string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	seen := map[string]string{}
	var clashes []string
	for _, f := range files {
		base := filepath.Base(f)
		id := strings.TrimSuffix(base, filepath.Ext(base))
		if prev, ok := seen[id]; ok {
			clashes = append(clashes, fmt.Sprintf("config id %q is defined by both %s and %s", id, prev, base))
			continue
		}
		seen[id] = base
	}
	return files, clashes, nil
}

// main validates every config and exits non-zero if any is invalid
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, clashes, err := configFiles(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No level configs found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := len(clashes) == 0
	for _, c := range clashes {
		fmt.Println("❌ " + c)
	}

	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Println("✅ VALID")
			for _, n := range result.Notes {
				fmt.Println("  " + n)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, e := range result.Errors {
				fmt.Println("  ❌ " + e)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
