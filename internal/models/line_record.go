package models

// LineRecord is one line of blame output: the line's text at a revision and
// the commit that last touched it
type LineRecord struct {
	// LineNumber is 1-based
	LineNumber int
	// CommitID is the commit blame reports for this line
	CommitID string
	// Content is the text of the line, without the trailing newline
	Content string
}

// NewLineRecord creates a new LineRecord
func NewLineRecord(lineNumber int, commitID, content string) LineRecord {
	return LineRecord{
		LineNumber: lineNumber,
		CommitID:   commitID,
		Content:    content,
	}
}
