package models

// Annotation is the render-ready gutter record for one visible line
type Annotation struct {
	LineNumber int
	// CommitHashShort is the 7 character origin commit hash
	CommitHashShort string
	// AuthorDisplay is the author name after the configured display rule
	// (empty when hidden)
	AuthorDisplay string
	// FormattedDate is empty when dates are hidden
	FormattedDate string
	// Color is the age color of the origin commit
	Color RGB
	// IsMoved mirrors Attribution.IsMoved
	IsMoved bool
	// Uncommitted is true for working-copy lines
	Uncommitted bool
}

// HasDate reports whether a date should be rendered
func (a Annotation) HasDate() bool {
	return a.FormattedDate != ""
}
