package config

import (
	"strings"
)

// Level names a background traffic intensity.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Profile holds the nominal background traffic rates for one intensity level.
type Profile struct {
	Level            Level   `json:"level"`
	SelectsPerMinute float64 `json:"selects_per_minute"`
	UpdatesPerMinute float64 `json:"updates_per_minute"`
	ErrorsPer5Min    float64 `json:"errors_per_5min"`
}

var profiles = map[Level]Profile{
	LevelLow:    {Level: LevelLow, SelectsPerMinute: 3, UpdatesPerMinute: 0.5, ErrorsPer5Min: 1},
	LevelMedium: {Level: LevelMedium, SelectsPerMinute: 6, UpdatesPerMinute: 1.5, ErrorsPer5Min: 2},
	LevelHigh:   {Level: LevelHigh, SelectsPerMinute: 12, UpdatesPerMinute: 3, ErrorsPer5Min: 3},
}

// Levels returns the known intensity levels in ascending order.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh}
}

// ProfileFor resolves an intensity name. Matching ignores case and
// surrounding whitespace; unknown names yield a *ConfigError.
func ProfileFor(level string) (Profile, error) {
	p, ok := profiles[Level(strings.ToLower(strings.TrimSpace(level)))]
	if !ok {
		return Profile{}, &ConfigError{
			Field:  "intensity",
			Value:  level,
			Reason: "must be one of low, medium, high",
		}
	}
	return p, nil
}

// UpdateProbability is the per-cycle chance of one transactional statement.
func (p Profile) UpdateProbability() float64 {
	return clampProbability(p.UpdatesPerMinute / 60)
}

// ErrorProbability is the per-cycle chance of one error-inducing statement.
func (p Profile) ErrorProbability() float64 {
	return clampProbability(p.ErrorsPer5Min / 300)
}

func clampProbability(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
