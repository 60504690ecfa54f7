package models

// RepoInfo contains information about the git repository being annotated
type RepoInfo struct {
	// Root is the working tree root
	Root string
	// GitDir is the repository's git directory (usually Root/.git)
	GitDir string
	// Branch is the checked out branch, empty when HEAD is detached
	Branch string
}

// NewRepoInfo creates a new RepoInfo
func NewRepoInfo(root, gitDir, branch string) RepoInfo {
	return RepoInfo{
		Root:   root,
		GitDir: gitDir,
		Branch: branch,
	}
}

// DisplayBranch returns the branch name or "(detached)"
func (r RepoInfo) DisplayBranch() string {
	if r.Branch == "" {
		return "(detached)"
	}
	return r.Branch
}
