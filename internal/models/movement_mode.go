package models

import (
	"fmt"
	"strings"
)

// MovementMode controls whether moved or copied lines are credited to the
// commit that originally authored them
type MovementMode string

const (
	// FollowInactive shows the latest commit that touched each line
	FollowInactive MovementMode = "inactive"
	// FollowSameCommit follows cut/copy/paste within the blamed commit
	FollowSameCommit MovementMode = "same-commit"
	// FollowAllCommits follows cut/copy/paste across the whole history (may be slow)
	FollowAllCommits MovementMode = "all-commits"
)

// ParseMovementMode parses a config value into a MovementMode
func ParseMovementMode(s string) (MovementMode, error) {
	switch MovementMode(strings.ToLower(strings.TrimSpace(s))) {
	case FollowInactive, "":
		return FollowInactive, nil
	case FollowSameCommit:
		return FollowSameCommit, nil
	case FollowAllCommits:
		return FollowAllCommits, nil
	default:
		return "", fmt.Errorf("unknown movement mode %q (want inactive, same-commit or all-commits)", s)
	}
}

// Display returns a display string for this mode
func (m MovementMode) Display() string {
	switch m {
	case FollowSameCommit:
		return "Follow within same commit"
	case FollowAllCommits:
		return "Follow within all commits (maybe slow)"
	default:
		return "Do not follow (default)"
	}
}

func (m MovementMode) String() string {
	return string(m)
}
