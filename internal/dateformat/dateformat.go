// Package dateformat renders authoring dates for the gutter.
//
// Custom formats use moment-style tokens (YYYY-MM-DD HH:mm), which is what
// users of the setting already know; text inside [brackets] is copied
// verbatim.
package dateformat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/dustin/go-humanize"
)

// DefaultCustom is the placeholder custom format
const DefaultCustom = "YYYY-MM-DD HH:mm"

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// ErrInvalidFormat is wrapped by ValidateCustom failures
var ErrInvalidFormat = errors.New("invalid date format")

// Options selects how dates are rendered
type Options struct {
	Display models.DateDisplay
	Custom  string
	Zone    models.TimezoneOption
	// Local is the viewer's zone; nil means time.Local
	Local *time.Location
}

// Format renders t, or returns "" when dates are hidden
func Format(t, now time.Time, opts Options) string {
	t = inZone(t, opts)
	switch opts.Display {
	case models.DateHide:
		return ""
	case models.DateTime:
		return t.Format(dateTimeLayout)
	case models.DateNaturalLanguage:
		return humanize.RelTime(t, now, "ago", "from now")
	case models.DateCustom:
		custom := opts.Custom
		if custom == "" {
			custom = DefaultCustom
		}
		return formatTokens(t, tokenize(custom))
	default:
		return t.Format(dateLayout)
	}
}

func inZone(t time.Time, opts Options) time.Time {
	switch opts.Zone {
	case models.ZoneAuthorLocal:
		return t
	case models.ZoneUTC:
		return t.UTC()
	default:
		if opts.Local != nil {
			return t.In(opts.Local)
		}
		return t.Local()
	}
}

// ValidateCustom rejects formats that are empty, have an unterminated
// [literal] or contain no date or time token at all
func ValidateCustom(format string) error {
	if strings.TrimSpace(format) == "" {
		return fmt.Errorf("empty format: %w", ErrInvalidFormat)
	}
	if strings.Count(format, "[") != strings.Count(format, "]") {
		return fmt.Errorf("%q: unbalanced [ ]: %w", format, ErrInvalidFormat)
	}
	depth := 0
	for _, r := range format {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		}
		if depth < 0 || depth > 1 {
			return fmt.Errorf("%q: unbalanced [ ]: %w", format, ErrInvalidFormat)
		}
	}
	for _, tok := range tokenize(format) {
		if !tok.literal {
			return nil
		}
	}
	return fmt.Errorf("%q: no date or time token: %w", format, ErrInvalidFormat)
}

type token struct {
	text    string
	literal bool
}

// tokens ordered longest first so that "MMMM" wins over "MM"
var tokens = []string{
	"YYYY", "MMMM", "dddd", "DDDD",
	"MMM", "ddd", "DDD", "SSS",
	"YY", "MM", "DD", "Do", "dd", "HH", "hh", "mm", "ss", "ZZ",
	"M", "D", "d", "H", "h", "m", "s", "A", "a", "Z", "Q", "X", "x",
}

func tokenize(format string) []token {
	var out []token
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, token{text: lit.String(), literal: true})
			lit.Reset()
		}
	}
	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i:], ']')
			if end < 0 {
				lit.WriteString(format[i+1:])
				break
			}
			lit.WriteString(format[i+1 : i+end])
			i += end + 1
			continue
		}
		matched := ""
		for _, tok := range tokens {
			if strings.HasPrefix(format[i:], tok) {
				matched = tok
				break
			}
		}
		if matched == "" {
			lit.WriteByte(format[i])
			i++
			continue
		}
		flush()
		out = append(out, token{text: matched})
		i += len(matched)
	}
	flush()
	return out
}

func formatTokens(t time.Time, toks []token) string {
	var b strings.Builder
	for _, tok := range toks {
		if tok.literal {
			b.WriteString(tok.text)
			continue
		}
		b.WriteString(render(t, tok.text))
	}
	return b.String()
}

func render(t time.Time, tok string) string {
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "Q":
		return strconv.Itoa((int(t.Month())-1)/3 + 1)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Format("Jan")
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DDDD":
		return fmt.Sprintf("%03d", t.YearDay())
	case "DDD":
		return strconv.Itoa(t.YearDay())
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "Do":
		return humanize.Ordinal(t.Day())
	case "dddd":
		return t.Weekday().String()
	case "ddd":
		return t.Format("Mon")
	case "dd":
		return t.Weekday().String()[:2]
	case "d":
		return strconv.Itoa(int(t.Weekday()))
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12)
	case "h":
		return strconv.Itoa(hour12)
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "SSS":
		return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
	case "A":
		return t.Format("PM")
	case "a":
		return t.Format("pm")
	case "ZZ":
		return t.Format("-0700")
	case "Z":
		return t.Format("-07:00")
	case "X":
		return strconv.FormatInt(t.Unix(), 10)
	case "x":
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return tok
}
