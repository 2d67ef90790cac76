package domain

import (
	"log/slog"
	"time"
)

// Spacing defaults used when the stored configuration cannot be read.
const (
	DefaultMinGapHours    = 3
	DefaultMaxGapHours    = 4
	DefaultMaxPostsPerDay = 6
	DefaultTimezone       = "America/New_York"
)

// SpacingConfig holds publishing cadence settings.
type SpacingConfig struct {
	MinGapHours    int    `json:"min_gap_hours"`
	MaxGapHours    int    `json:"max_gap_hours"`
	MaxPostsPerDay int    `json:"max_posts_per_day"`
	Timezone       string `json:"timezone"`
}

// DefaultSpacingConfig returns the hardcoded fallback configuration.
func DefaultSpacingConfig() SpacingConfig {
	return SpacingConfig{
		MinGapHours:    DefaultMinGapHours,
		MaxGapHours:    DefaultMaxGapHours,
		MaxPostsPerDay: DefaultMaxPostsPerDay,
		Timezone:       DefaultTimezone,
	}
}

// Location resolves the configured timezone.
// Unknown identifiers resolve to UTC.
func (c SpacingConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone in spacing config, using UTC",
			"timezone", c.Timezone,
			"error", err,
		)
		return time.UTC
	}
	return loc
}
