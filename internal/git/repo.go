package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// IsGitRepo checks if the path is the root of a git working tree
func IsGitRepo(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// FindRepo walks up from dir to the enclosing working tree root
func FindRepo(dir string) (models.RepoInfo, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return models.RepoInfo{}, err
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return models.RepoInfo{}, err
	}

	path := abs
	for {
		if IsGitRepo(path) {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			return models.RepoInfo{}, fmt.Errorf("%s is not inside a git repository: %w", abs, ErrBackendUnavailable)
		}
		path = parent
	}

	return models.NewRepoInfo(path, resolveGitDir(path), CurrentBranch(path)), nil
}

// CurrentBranch returns the short name of the checked out branch, or "" when
// HEAD is detached or unborn
func CurrentBranch(root string) string {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		// Unborn branch: read the symbolic ref directly
		ref, err := repo.Storer.Reference(plumbing.HEAD)
		if err != nil || ref.Type() != plumbing.SymbolicReference {
			return ""
		}
		return ref.Target().Short()
	}
	if !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}

// resolveGitDir follows a ".git" file (worktrees, submodules) to the real
// git directory
func resolveGitDir(root string) string {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil || info.IsDir() {
		return dotGit
	}
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return dotGit
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, "gitdir:") {
		return dotGit
	}
	target := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	return filepath.Clean(target)
}

// RelPath converts path to a slash-separated path relative to root. Paths
// that escape root are reported as ErrNotTracked.
func RelPath(root, path string) (string, error) {
	rel := filepath.Clean(path)
	if filepath.IsAbs(path) {
		var err error
		rel, err = filepath.Rel(root, path)
		if err != nil {
			return "", fmt.Errorf("%s: %w", path, ErrNotTracked)
		}
	}
	if err := checkInside(rel); err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func checkInside(rel string) error {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == ".." || strings.HasPrefix(rel, "../") || rel == "." {
		return fmt.Errorf("%s is outside the repository: %w", rel, ErrNotTracked)
	}
	return nil
}
