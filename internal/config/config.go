package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wahlandcase/lineauthor/internal/agecolor"
	"github.com/wahlandcase/lineauthor/internal/dateformat"
	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/pelletier/go-toml/v2"
)

// EnvPath overrides the config file location
const EnvPath = "LINEAUTHOR_CONFIG"

type Config struct {
	LineAuthor LineAuthorConfig `toml:"line_author"`
	Git        GitConfig        `toml:"git"`
	Refresh    RefreshConfig    `toml:"refresh"`
	Cache      CacheConfig      `toml:"cache"`

	// File the config was loaded from (not serialized)
	path string
}

type LineAuthorConfig struct {
	Enabled            bool    `toml:"enabled"`
	FollowMovement     string  `toml:"follow_movement"`
	MinimumMatchLength int     `toml:"minimum_match_length"`
	Similarity         float64 `toml:"similarity"`
	IgnoreWhitespace   bool    `toml:"ignore_whitespace"`
	AuthorDisplay      string  `toml:"author_display"`
	ShowCommitHash     bool    `toml:"show_commit_hash"`
	DateDisplay        string  `toml:"date_display"`
	CustomDateFormat   string  `toml:"custom_date_format"`
	Timezone           string  `toml:"timezone"`
	ColoringMaxAge     string  `toml:"coloring_max_age"`
	ColorNew           string  `toml:"color_new"`
	ColorOld           string  `toml:"color_old"`
}

type GitConfig struct {
	// Backend is "cli" or "go-git"
	Backend string `toml:"backend"`
	Binary  string `toml:"binary"`
	// BasePath is the repository directory when not started inside one
	BasePath  string   `toml:"base_path"`
	Env       []string `toml:"env"`
	ExtraPath []string `toml:"extra_path"`
}

type RefreshConfig struct {
	Debounce string `toml:"debounce"`
}

type CacheConfig struct {
	// Persist keeps commit metadata in a local database between runs
	Persist bool   `toml:"persist"`
	Size    int    `toml:"size"`
	Path    string `toml:"path"`
}

// DefaultDebounce is the delay between the last edit and a recompute
const DefaultDebounce = time.Second

func DefaultConfig() *Config {
	return &Config{
		LineAuthor: LineAuthorConfig{
			Enabled:            true,
			FollowMovement:     string(models.FollowInactive),
			MinimumMatchLength: 40,
			Similarity:         1,
			AuthorDisplay:      string(models.AuthorInitials),
			DateDisplay:        string(models.DateOnly),
			CustomDateFormat:   dateformat.DefaultCustom,
			Timezone:           string(models.ZoneViewerLocal),
			ColoringMaxAge:     "1y",
			ColorNew:           agecolor.DefaultNewest.String(),
			ColorOld:           agecolor.DefaultOldest.String(),
		},
		Git: GitConfig{
			Backend: "cli",
			Binary:  "git",
		},
		Refresh: RefreshConfig{
			Debounce: DefaultDebounce.String(),
		},
		Cache: CacheConfig{
			Persist: true,
			Size:    4096,
		},
	}
}

// Path returns where the config file lives
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return expandTilde(p), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lineauthor", "lineauthor.toml"), nil
}

// Load reads the config file, writing the defaults on first run
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields the defaults,
// which are saved there (best effort).
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.path = path
			_ = cfg.Save() // Best effort save
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Save() error {
	path := c.path
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return err
		}
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// File returns the path the config was loaded from, if any
func (c *Config) File() string {
	return c.path
}

// Validate checks every option and reports all rejected ones
func (c *Config) Validate() error {
	var errs []error
	for _, key := range Keys() {
		value, _ := c.Get(key)
		probe := *c
		if err := probe.Set(key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DebounceDelay returns the parsed refresh.debounce, or the default
func (c *Config) DebounceDelay() time.Duration {
	d, err := time.ParseDuration(c.Refresh.Debounce)
	if err != nil || d < 0 {
		return DefaultDebounce
	}
	return d
}

// CachePath returns the commit database path, "" meaning the default
func (c *Config) CachePath() string {
	return expandTilde(c.Cache.Path)
}

// BasePath returns git.base_path with ~ expanded
func (c *Config) BasePath() string {
	return expandTilde(c.Git.BasePath)
}

// Settings resolves the line author options into a typed snapshot. Values
// that do not parse fall back to their defaults; Load and Set never let
// such values in.
func (c *Config) Settings() Settings {
	s := DefaultSettings()
	la := c.LineAuthor

	s.Enabled = la.Enabled
	if v, err := models.ParseMovementMode(la.FollowMovement); err == nil {
		s.Movement = v
	}
	if la.MinimumMatchLength >= 1 {
		s.MinimumMatchLength = la.MinimumMatchLength
	}
	if la.Similarity > 0 && la.Similarity <= 1 {
		s.Similarity = la.Similarity
	}
	s.IgnoreWhitespace = la.IgnoreWhitespace
	if v, err := models.ParseAuthorDisplay(la.AuthorDisplay); err == nil {
		s.AuthorDisplay = v
	}
	s.ShowCommitHash = la.ShowCommitHash
	if v, err := models.ParseDateDisplay(la.DateDisplay); err == nil {
		s.DateDisplay = v
	}
	if dateformat.ValidateCustom(la.CustomDateFormat) == nil {
		s.CustomDateFormat = la.CustomDateFormat
	}
	if v, err := models.ParseTimezoneOption(la.Timezone); err == nil {
		s.Timezone = v
	}
	if v, err := agecolor.ParseMaxAge(la.ColoringMaxAge); err == nil {
		s.MaxAge = v
	}
	if v, err := agecolor.ParseColor(la.ColorNew); err == nil {
		s.ColorNewest = v
	}
	if v, err := agecolor.ParseColor(la.ColorOld); err == nil {
		s.ColorOldest = v
	}
	return s
}

// InvalidConfigurationError is returned when an option value is rejected.
// The previous value stays in effect.
type InvalidConfigurationError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Key, e.Value, e.Err)
}

func (e *InvalidConfigurationError) Unwrap() error {
	return e.Err
}

// option binds a dotted key to its field
type option struct {
	get func(c *Config) string
	set func(c *Config, value string) error
}

var options = map[string]option{
	"line_author.enabled": boolOption(func(c *Config) *bool { return &c.LineAuthor.Enabled }),
	"line_author.follow_movement": {
		get: func(c *Config) string { return c.LineAuthor.FollowMovement },
		set: func(c *Config, v string) error {
			m, err := models.ParseMovementMode(v)
			if err != nil {
				return err
			}
			c.LineAuthor.FollowMovement = string(m)
			return nil
		},
	},
	"line_author.minimum_match_length": {
		get: func(c *Config) string { return strconv.Itoa(c.LineAuthor.MinimumMatchLength) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return errors.New("not an integer")
			}
			if n < 1 {
				return errors.New("must be at least 1")
			}
			c.LineAuthor.MinimumMatchLength = n
			return nil
		},
	},
	"line_author.similarity": {
		get: func(c *Config) string { return strconv.FormatFloat(c.LineAuthor.Similarity, 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return errors.New("not a number")
			}
			if f <= 0 || f > 1 {
				return errors.New("must be in (0, 1]")
			}
			c.LineAuthor.Similarity = f
			return nil
		},
	},
	"line_author.ignore_whitespace": boolOption(func(c *Config) *bool { return &c.LineAuthor.IgnoreWhitespace }),
	"line_author.author_display": {
		get: func(c *Config) string { return c.LineAuthor.AuthorDisplay },
		set: func(c *Config, v string) error {
			a, err := models.ParseAuthorDisplay(v)
			if err != nil {
				return err
			}
			c.LineAuthor.AuthorDisplay = string(a)
			return nil
		},
	},
	"line_author.show_commit_hash": boolOption(func(c *Config) *bool { return &c.LineAuthor.ShowCommitHash }),
	"line_author.date_display": {
		get: func(c *Config) string { return c.LineAuthor.DateDisplay },
		set: func(c *Config, v string) error {
			d, err := models.ParseDateDisplay(v)
			if err != nil {
				return err
			}
			c.LineAuthor.DateDisplay = string(d)
			return nil
		},
	},
	"line_author.custom_date_format": {
		get: func(c *Config) string { return c.LineAuthor.CustomDateFormat },
		set: func(c *Config, v string) error {
			if err := dateformat.ValidateCustom(v); err != nil {
				return err
			}
			c.LineAuthor.CustomDateFormat = v
			return nil
		},
	},
	"line_author.timezone": {
		get: func(c *Config) string { return c.LineAuthor.Timezone },
		set: func(c *Config, v string) error {
			z, err := models.ParseTimezoneOption(v)
			if err != nil {
				return err
			}
			c.LineAuthor.Timezone = string(z)
			return nil
		},
	},
	"line_author.coloring_max_age": {
		get: func(c *Config) string { return c.LineAuthor.ColoringMaxAge },
		set: func(c *Config, v string) error {
			if _, err := agecolor.ParseMaxAge(v); err != nil {
				return err
			}
			c.LineAuthor.ColoringMaxAge = strings.TrimSpace(v)
			return nil
		},
	},
	"line_author.color_new": colorOption(func(c *Config) *string { return &c.LineAuthor.ColorNew }),
	"line_author.color_old": colorOption(func(c *Config) *string { return &c.LineAuthor.ColorOld }),
	"git.backend": {
		get: func(c *Config) string { return c.Git.Backend },
		set: func(c *Config, v string) error {
			switch v {
			case "cli", "go-git":
				c.Git.Backend = v
				return nil
			}
			return errors.New(`must be "cli" or "go-git"`)
		},
	},
	"git.binary": {
		get: func(c *Config) string { return c.Git.Binary },
		set: func(c *Config, v string) error {
			if strings.TrimSpace(v) == "" {
				return errors.New("must not be empty")
			}
			c.Git.Binary = v
			return nil
		},
	},
	"git.base_path": {
		get: func(c *Config) string { return c.Git.BasePath },
		set: func(c *Config, v string) error {
			c.Git.BasePath = v
			return nil
		},
	},
	"refresh.debounce": {
		get: func(c *Config) string { return c.Refresh.Debounce },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			if d < 0 {
				return errors.New("must not be negative")
			}
			c.Refresh.Debounce = d.String()
			return nil
		},
	},
	"cache.persist": boolOption(func(c *Config) *bool { return &c.Cache.Persist }),
	"cache.size": {
		get: func(c *Config) string { return strconv.Itoa(c.Cache.Size) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 1 {
				return errors.New("must be a positive integer")
			}
			c.Cache.Size = n
			return nil
		},
	},
}

func boolOption(field func(c *Config) *bool) option {
	return option{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return errors.New("must be true or false")
			}
			*field(c) = b
			return nil
		},
	}
}

func colorOption(field func(c *Config) *string) option {
	return option{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			rgb, err := agecolor.ParseColor(v)
			if err != nil {
				return err
			}
			// Keep named and hsl colors as written; rgb() is normalized
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "rgb(") {
				v = rgb.String()
			}
			*field(c) = strings.TrimSpace(v)
			return nil
		},
	}
}

// Keys lists every settable option in sorted order
func Keys() []string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the current value of a dotted key
func (c *Config) Get(key string) (string, bool) {
	opt, ok := options[key]
	if !ok {
		return "", false
	}
	return opt.get(c), true
}

// Set validates and applies one option. On rejection the previous value is
// kept and an *InvalidConfigurationError is returned.
func (c *Config) Set(key, value string) error {
	opt, ok := options[key]
	if !ok {
		return &InvalidConfigurationError{Key: key, Value: value, Err: errors.New("unknown option")}
	}
	if err := opt.set(c, value); err != nil {
		return &InvalidConfigurationError{Key: key, Value: value, Err: err}
	}
	return nil
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
