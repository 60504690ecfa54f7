package models

import (
	"fmt"
	"strings"
)

// DateDisplay controls whether and how the authoring date is shown
type DateDisplay string

const (
	DateHide            DateDisplay = "hide"
	DateOnly            DateDisplay = "date"
	DateTime            DateDisplay = "datetime"
	DateNaturalLanguage DateDisplay = "natural language"
	DateCustom          DateDisplay = "custom"
)

// ParseDateDisplay parses a config value into a DateDisplay
func ParseDateDisplay(s string) (DateDisplay, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hide":
		return DateHide, nil
	case "date", "":
		return DateOnly, nil
	case "datetime":
		return DateTime, nil
	case "natural language", "natural-language":
		return DateNaturalLanguage, nil
	case "custom":
		return DateCustom, nil
	default:
		return "", fmt.Errorf("unknown date display %q", s)
	}
}

// TimezoneOption selects the zone the authoring date is rendered in
type TimezoneOption string

const (
	ZoneViewerLocal TimezoneOption = "viewer-local"
	ZoneAuthorLocal TimezoneOption = "author-local"
	ZoneUTC         TimezoneOption = "utc0000"
)

// ParseTimezoneOption parses a config value into a TimezoneOption
func ParseTimezoneOption(s string) (TimezoneOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer-local", "":
		return ZoneViewerLocal, nil
	case "author-local":
		return ZoneAuthorLocal, nil
	case "utc0000", "utc":
		return ZoneUTC, nil
	default:
		return "", fmt.Errorf("unknown timezone option %q", s)
	}
}

// AuthorDisplay controls whether and how the author name is shown
type AuthorDisplay string

const (
	AuthorHide      AuthorDisplay = "hide"
	AuthorInitials  AuthorDisplay = "initials"
	AuthorFirstName AuthorDisplay = "first name"
	AuthorLastName  AuthorDisplay = "last name"
	AuthorFull      AuthorDisplay = "full"
)

// ParseAuthorDisplay parses a config value into an AuthorDisplay
func ParseAuthorDisplay(s string) (AuthorDisplay, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hide":
		return AuthorHide, nil
	case "initials", "":
		return AuthorInitials, nil
	case "first name", "first-name":
		return AuthorFirstName, nil
	case "last name", "last-name":
		return AuthorLastName, nil
	case "full":
		return AuthorFull, nil
	default:
		return "", fmt.Errorf("unknown author display %q", s)
	}
}
