// Package agecolor maps commit ages onto a color gradient and parses the
// color and duration settings that drive it.
package agecolor

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

const day = 24 * time.Hour

// MinMaxAge is the smallest accepted coloring age
const MinMaxAge = day

// DefaultMaxAge is used when no valid coloring age is configured
const DefaultMaxAge = 365 * day

var (
	DefaultNewest = models.NewRGB(255, 150, 150)
	DefaultOldest = models.NewRGB(120, 160, 255)
)

// ErrInvalid is wrapped by every parse failure in this package
var ErrInvalid = errors.New("invalid value")

// ColorFor interpolates each channel linearly between newest (age zero) and
// oldest (age at or beyond maxAge). Future timestamps render as newest.
func ColorFor(ts, now time.Time, maxAge time.Duration, newest, oldest models.RGB) models.RGB {
	if maxAge < MinMaxAge {
		maxAge = DefaultMaxAge
	}
	age := now.Sub(ts)
	switch {
	case age <= 0:
		return newest
	case age >= maxAge:
		return oldest
	}
	return Interpolate(newest, oldest, float64(age)/float64(maxAge))
}

// Interpolate blends from a (t=0) to b (t=1), rounding each channel
func Interpolate(a, b models.RGB, t float64) models.RGB {
	t = min(max(t, 0), 1)
	return fromColorful(toColorful(a).BlendRgb(toColorful(b), t))
}

var (
	maxAgeRe   = regexp.MustCompile(`^(?:\d+[ymwd])+$`)
	maxAgePart = regexp.MustCompile(`(\d+)([ymwd])`)
)

var unitDays = map[string]int{"y": 365, "m": 30, "w": 7, "d": 1}

// maxAgeDays is the longest age a time.Duration can hold
const maxAgeDays = math.MaxInt64 / int64(day)

// ParseMaxAge parses a coloring age such as "1y", "6m", "2w3d" or "30d".
// Years count 365 days and months 30. Ages below one day are rejected.
func ParseMaxAge(s string) (time.Duration, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if !maxAgeRe.MatchString(norm) {
		return 0, fmt.Errorf("coloring age %q: expected <number><y|m|w|d>: %w", s, ErrInvalid)
	}
	var days int64
	for _, m := range maxAgePart.FindAllStringSubmatch(norm, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("coloring age %q: %w", s, ErrInvalid)
		}
		unit := int64(unitDays[m[2]])
		if n > (maxAgeDays-days)/unit {
			return 0, fmt.Errorf("coloring age %q exceeds the maximum of %dd: %w", s, maxAgeDays, ErrInvalid)
		}
		days += n * unit
	}
	d := time.Duration(days) * day
	if d < MinMaxAge {
		return 0, fmt.Errorf("coloring age %q is below the minimum of 1d: %w", s, ErrInvalid)
	}
	return d, nil
}

var (
	rgbRe = regexp.MustCompile(`^rgb\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*\)$`)
	hslRe = regexp.MustCompile(`^hsl\(\s*(\d+(?:\.\d+)?)\s*,\s*(\d+(?:\.\d+)?)%?\s*,\s*(\d+(?:\.\d+)?)%?\s*\)$`)
)

// ParseColor accepts rgb(r,g,b), hsl(h,s%,l%), #rgb, #rrggbb and CSS color
// names
func ParseColor(s string) (models.RGB, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return models.RGB{}, fmt.Errorf("empty color: %w", ErrInvalid)
	}

	if m := rgbRe.FindStringSubmatch(norm); m != nil {
		var ch [3]uint8
		for i := range ch {
			v, _ := strconv.Atoi(m[i+1])
			if v > 255 {
				return models.RGB{}, fmt.Errorf("color %q: channel %d out of range: %w", s, v, ErrInvalid)
			}
			ch[i] = uint8(v)
		}
		return models.NewRGB(ch[0], ch[1], ch[2]), nil
	}

	if m := hslRe.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.ParseFloat(m[1], 64)
		sat, _ := strconv.ParseFloat(m[2], 64)
		light, _ := strconv.ParseFloat(m[3], 64)
		if sat > 100 || light > 100 {
			return models.RGB{}, fmt.Errorf("color %q: saturation and lightness are percentages: %w", s, ErrInvalid)
		}
		return fromColorful(colorful.Hsl(h, sat/100, light/100)), nil
	}

	if strings.HasPrefix(norm, "#") {
		c, err := colorful.Hex(norm)
		if err != nil {
			return models.RGB{}, fmt.Errorf("color %q: %w", s, ErrInvalid)
		}
		return fromColorful(c), nil
	}

	if named, ok := colornames.Map[norm]; ok {
		c, _ := colorful.MakeColor(named)
		return fromColorful(c), nil
	}
	return models.RGB{}, fmt.Errorf("color %q: unrecognized color: %w", s, ErrInvalid)
}

func toColorful(c models.RGB) colorful.Color {
	col, _ := colorful.MakeColor(color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
	return col
}

func fromColorful(c colorful.Color) models.RGB {
	r, g, b := c.Clamped().RGB255()
	return models.NewRGB(r, g, b)
}
