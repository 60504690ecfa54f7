package models

import (
	"fmt"
	"time"
)

// FileAttributionSnapshot is one complete, immutable attribution result for a
// file at a revision
type FileAttributionSnapshot struct {
	FilePath string
	// Revision is the commit the blame was computed against
	Revision     string
	Attributions []Attribution
	// StartedAt is when the computation producing this snapshot began.
	// Ordering between snapshots of one file uses this, not ComputedAt.
	StartedAt  time.Time
	ComputedAt time.Time
}

// LineCount returns the number of lines covered by the snapshot
func (s *FileAttributionSnapshot) LineCount() int {
	return len(s.Attributions)
}

// Line returns the attribution for a 1-based line number
func (s *FileAttributionSnapshot) Line(n int) (Attribution, bool) {
	if n < 1 || n > len(s.Attributions) {
		return Attribution{}, false
	}
	return s.Attributions[n-1], true
}

// CommitIDs returns the distinct origin commits in first-seen order
func (s *FileAttributionSnapshot) CommitIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, a := range s.Attributions {
		if !seen[a.OriginCommitID] {
			seen[a.OriginCommitID] = true
			ids = append(ids, a.OriginCommitID)
		}
	}
	return ids
}

// Validate checks that line numbers are exactly 1..N in order
func (s *FileAttributionSnapshot) Validate() error {
	for i, a := range s.Attributions {
		if a.LineNumber != i+1 {
			return fmt.Errorf("snapshot %s@%s: entry %d has line number %d", s.FilePath, ShortHash(s.Revision), i, a.LineNumber)
		}
	}
	return nil
}
