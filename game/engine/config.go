package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid level config")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// ValidateLevelConfig validates a level configuration for correctness and playability
func ValidateLevelConfig(config *LevelConfig) error {
	if config == nil {
		return invalid("config is nil")
	}
	if strings.TrimSpace(config.Name) == "" {
		return invalid("name is required")
	}
	if strings.TrimSpace(config.Description) == "" {
		return invalid("description is required")
	}

	// zero means default
	if config.BaseSpeed != 0 &&
		(math.IsNaN(config.BaseSpeed) || config.BaseSpeed < MinBaseSpeed || config.BaseSpeed > MaxBaseSpeed) {
		return invalid("base_speed must be between %g and %g, got %g", MinBaseSpeed, MaxBaseSpeed, config.BaseSpeed)
	}

	switch config.BrakeMode {
	case "", BrakeModeTick, BrakeModePulse:
	default:
		return invalid("brake_mode must be %q or %q, got %q", BrakeModeTick, BrakeModePulse, config.BrakeMode)
	}

	switch config.ScoreFloor {
	case "", ScoreFloorNone, ScoreFloorZero, ScoreFloorLegacy:
	default:
		return invalid("score_floor must be one of none, zero, legacy; got %q", config.ScoreFloor)
	}

	if config.FailResetSeconds < 0 || config.FailResetSeconds > 60 || math.IsNaN(config.FailResetSeconds) {
		return invalid("fail_reset_seconds must be between 0 and 60, got %g", config.FailResetSeconds)
	}

	if len(config.Obstacles) == 0 {
		return invalid("at least one obstacle is required")
	}
	if len(config.Obstacles) > MaxObstacles {
		return invalid("at most %d obstacles are allowed, got %d", MaxObstacles, len(config.Obstacles))
	}

	seen := make(map[string]bool, len(config.Obstacles))
	for i, o := range config.Obstacles {
		if o.ID == "" {
			return invalid("obstacle %d: id is required", i+1)
		}
		if strings.ContainsAny(o.ID, " \t\n/") {
			return invalid("obstacle %d: id %q must not contain whitespace or '/'", i+1, o.ID)
		}
		if seen[o.ID] {
			return invalid("obstacle %d: duplicate id %q", i+1, o.ID)
		}
		seen[o.ID] = true

		if p := o.PositivePoints; p != nil && (*p < 0 || *p > MaxPointValue) {
			return invalid("obstacle %q: positive_points must be between 0 and %d, got %d", o.ID, MaxPointValue, *p)
		}
		if p := o.NegativePoints; p != nil && (*p < 0 || *p > MaxPointValue) {
			return invalid("obstacle %q: negative_points must be between 0 and %d, got %d", o.ID, MaxPointValue, *p)
		}
		switch o.Resolution {
		case "", ResolutionZones, ResolutionHeight:
		default:
			return invalid("obstacle %q: resolution must be %q or %q, got %q", o.ID, ResolutionZones, ResolutionHeight, o.Resolution)
		}
		if o.ClearHeight < 0 || math.IsNaN(o.ClearHeight) {
			return invalid("obstacle %q: clear_height must not be negative", o.ID)
		}
	}

	if config.Messages.Welcome == "" {
		return invalid("messages.welcome is required")
	}
	templates := map[string]string{
		"cleared":   config.Messages.Cleared,
		"failed":    config.Messages.Failed,
		"confirmed": config.Messages.Confirmed,
	}
	for name, tmpl := range templates {
		if err := validateTemplate(tmpl); err != nil {
			return invalid("messages.%s: %v", name, err)
		}
	}

	return nil
}

// validateTemplate allows at most one %s (obstacle id) followed by at most
// one %d (score total).
func validateTemplate(tmpl string) error {
	s := strings.Count(tmpl, "%s")
	d := strings.Count(tmpl, "%d")
	if s > 1 || d > 1 {
		return fmt.Errorf("at most one %%s and one %%d are allowed")
	}
	if s == 1 && d == 1 && strings.Index(tmpl, "%s") > strings.Index(tmpl, "%d") {
		return fmt.Errorf("%%s must come before %%d")
	}
	rest := strings.NewReplacer("%%", "", "%s", "", "%d", "").Replace(tmpl)
	if strings.Contains(rest, "%") {
		return fmt.Errorf("only %%s and %%d verbs are supported")
	}
	return nil
}

// ParseLevelConfig decodes a config. ext selects YAML (".yaml", ".yml") or
// JSON (anything else).
func ParseLevelConfig(data []byte, ext string) (*LevelConfig, error) {
	var config LevelConfig
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}
	return &config, nil
}

// LoadLevelConfig loads and validates a level configuration file
func LoadLevelConfig(filename string) (*LevelConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	config, err := ParseLevelConfig(data, filepath.Ext(configPath))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(configPath), err)
	}
	if err := ValidateLevelConfig(config); err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(configPath), err)
	}
	return config, nil
}

// DefaultLevelConfig returns the built-in level used when no config files
// are available.
func DefaultLevelConfig() *LevelConfig {
	return &LevelConfig{
		Name:        "Classic Park",
		Description: "Four obstacles and a flat run-up",
		BaseSpeed:   DefaultBaseSpeed,
		BrakeMode:   BrakeModeTick,
		ScoreFloor:  ScoreFloorNone,
		Obstacles: []ObstacleConfig{
			{ID: "rail"},
			{ID: "ledge"},
			{ID: "gap", PositivePoints: IntPtr(25), NegativePoints: IntPtr(10)},
			{ID: "box", Resolution: ResolutionHeight, ClearHeight: DefaultClearHeight},
		},
		Messages: LevelMessages{
			Welcome:   "Welcome to the park! Push to build speed and clear the obstacles.",
			Cleared:   "Cleared %s! Score: %d",
			Failed:    "Bailed on %s! Score: %d",
			Confirmed: "Landed after bailing on %s. Score: %d",
		},
	}
}
