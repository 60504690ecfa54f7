package models

import "time"

// Attribution is the resolved authorship of a single line
type Attribution struct {
	// LineNumber is 1-based
	LineNumber int
	// OriginCommitID is the commit credited with authoring the line
	OriginCommitID string
	// OriginTime is the author time of OriginCommitID
	OriginTime time.Time
	// BlamedCommitID is what raw blame reported before movement resolution
	BlamedCommitID string
	// IsMoved is true when OriginCommitID was reassigned to an earlier commit
	IsMoved bool
}

// Unmoved builds the attribution that credits the blamed commit itself
func Unmoved(rec LineRecord) Attribution {
	return Attribution{
		LineNumber:     rec.LineNumber,
		OriginCommitID: rec.CommitID,
		BlamedCommitID: rec.CommitID,
	}
}
