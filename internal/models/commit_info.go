package models

import "time"

// UncommittedID is the commit id blame reports for lines that only exist in
// the working copy
const UncommittedID = "0000000000000000000000000000000000000000"

// CommitInfo contains author metadata about a git commit
type CommitInfo struct {
	// CommitID is the full commit hash
	CommitID string
	// AuthorName as recorded in the commit
	AuthorName string
	// AuthorEmail as recorded in the commit
	AuthorEmail string
	// AuthorTime is the authoring instant, in the author's own offset
	AuthorTime time.Time
}

// NewCommitInfo creates a new CommitInfo
func NewCommitInfo(id, name, email string, when time.Time) CommitInfo {
	return CommitInfo{
		CommitID:    id,
		AuthorName:  name,
		AuthorEmail: email,
		AuthorTime:  when,
	}
}

// UncommittedInfo returns the placeholder metadata for working-copy lines
func UncommittedInfo(now time.Time) CommitInfo {
	return NewCommitInfo(UncommittedID, "Not Committed Yet", "not.committed.yet", now)
}

// IsUncommitted reports whether id is the working-copy placeholder
func IsUncommitted(id string) bool {
	return id == UncommittedID
}

// ShortHash returns the 7 character abbreviation of a commit id
func ShortHash(id string) string {
	if len(id) <= 7 {
		return id
	}
	return id[:7]
}
