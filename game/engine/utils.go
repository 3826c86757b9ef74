package engine

import (
	"fmt"
	"math"
	"strings"
)

// clamp limits v to [lo, hi]. NaN collapses to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SpeedBand classifies a speed relative to the skater's base and max speed
func SpeedBand(s SkaterState) string {
	switch {
	case s.CurrentSpeed <= 0:
		return "STOPPED"
	case s.CurrentSpeed < s.BaseSpeed:
		return "SLOW"
	case s.CurrentSpeed == s.BaseSpeed:
		return "CRUISING"
	case s.CurrentSpeed < s.MaxSpeed:
		return "BOOSTED"
	default:
		return "TOP SPEED"
	}
}

// MaxAchievableScore returns the score for clearing every obstacle once
func MaxAchievableScore(config *LevelConfig) int {
	total := 0
	for _, o := range config.Obstacles {
		positive, _ := o.Points()
		total += positive
	}
	return total
}

// MinAchievableScore returns the score for failing every obstacle once
// (ignoring floor policies)
func MinAchievableScore(config *LevelConfig) int {
	total := 0
	for _, o := range config.Obstacles {
		_, negative := o.Points()
		total -= negative
	}
	return total
}

// FormatMessage fills an outcome template with the obstacle id and total.
// Templates missing a verb still render.
func FormatMessage(template, obstacleID string, total int) string {
	if template == "" {
		return ""
	}
	hasS := strings.Contains(template, "%s")
	hasD := strings.Contains(template, "%d")
	switch {
	case hasS && hasD:
		return fmt.Sprintf(template, obstacleID, total)
	case hasD:
		return fmt.Sprintf(template, total)
	case hasS:
		return fmt.Sprintf(template, obstacleID)
	default:
		return template
	}
}

func pointsOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// IntPtr returns a pointer to n, for optional config fields
func IntPtr(n int) *int {
	return &n
}
