package config

import (
	"time"

	"github.com/wahlandcase/lineauthor/internal/agecolor"
	"github.com/wahlandcase/lineauthor/internal/dateformat"
	"github.com/wahlandcase/lineauthor/internal/models"
)

// Settings is an immutable, parsed view of the line author options. A new
// value is handed to the engine whenever the configuration changes.
type Settings struct {
	Enabled            bool
	Movement           models.MovementMode
	MinimumMatchLength int
	// Similarity below 1 enables near-identical movement matching
	Similarity       float64
	IgnoreWhitespace bool

	AuthorDisplay    models.AuthorDisplay
	ShowCommitHash   bool
	DateDisplay      models.DateDisplay
	CustomDateFormat string
	Timezone         models.TimezoneOption

	MaxAge      time.Duration
	ColorNewest models.RGB
	ColorOldest models.RGB
}

// DefaultSettings mirrors DefaultConfig
func DefaultSettings() Settings {
	return Settings{
		Enabled:            true,
		Movement:           models.FollowInactive,
		MinimumMatchLength: 40,
		Similarity:         1,
		AuthorDisplay:      models.AuthorInitials,
		DateDisplay:        models.DateOnly,
		CustomDateFormat:   dateformat.DefaultCustom,
		Timezone:           models.ZoneViewerLocal,
		MaxAge:             agecolor.DefaultMaxAge,
		ColorNewest:        agecolor.DefaultNewest,
		ColorOldest:        agecolor.DefaultOldest,
	}
}

// AffectsAttribution reports whether moving from s to next changes which
// commit a line is credited to. Display-only changes (colors, dates, author
// format) do not.
func (s Settings) AffectsAttribution(next Settings) bool {
	return s.Movement != next.Movement ||
		s.MinimumMatchLength != next.MinimumMatchLength ||
		s.IgnoreWhitespace != next.IgnoreWhitespace ||
		s.Similarity != next.Similarity
}

// DateOptions returns the formatting options for dateformat.Format
func (s Settings) DateOptions() dateformat.Options {
	return dateformat.Options{
		Display: s.DateDisplay,
		Custom:  s.CustomDateFormat,
		Zone:    s.Timezone,
	}
}
