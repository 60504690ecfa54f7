package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/wahlandcase/lineauthor/internal/models"

	"github.com/charmbracelet/log"
)

// CLIBackend runs a git binary against a working tree
type CLIBackend struct {
	root   string
	binary string
	env    []string
	logger *log.Logger
}

// NewCLIBackend checks that the binary can be found and returns a backend
// rooted at root
func NewCLIBackend(root, binary string, env, extraPath []string, logger *log.Logger) (*CLIBackend, error) {
	if binary == "" {
		binary = "git"
	}
	if logger == nil {
		logger = log.Default()
	}
	fullEnv := append([]string(nil), env...)
	if len(extraPath) > 0 {
		path := strings.Join(extraPath, string(os.PathListSeparator))
		if cur := os.Getenv("PATH"); cur != "" {
			path += string(os.PathListSeparator) + cur
		}
		fullEnv = append(fullEnv, "PATH="+path)
		// LookPath consults the process PATH; search the extra entries first
		if !strings.ContainsRune(binary, filepath.Separator) {
			for _, dir := range extraPath {
				candidate := filepath.Join(dir, binary)
				if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
					binary = candidate
					break
				}
			}
		}
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, &GitError{Command: "lookup", Output: err.Error(), Err: ErrBackendUnavailable}
	}
	return &CLIBackend{root: root, binary: resolved, env: fullEnv, logger: logger}, nil
}

func (b *CLIBackend) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, b.binary, args...)
	cmd.Dir = b.root
	cmd.Env = append(os.Environ(), b.env...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	b.logger.Debug("git", "args", args, "took", time.Since(start), "err", err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		output := strings.TrimSpace(stderr.String())
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, &GitError{Command: args[0], Output: execErr.Error(), Err: ErrBackendUnavailable}
		}
		if output == "" {
			output = err.Error()
		}
		return nil, &GitError{Command: args[0], Output: output, Err: classifyOutput(output)}
	}
	return stdout.Bytes(), nil
}

func (b *CLIBackend) Head(ctx context.Context) (string, error) {
	return b.ResolveRevision(ctx, "HEAD")
}

func (b *CLIBackend) ResolveRevision(ctx context.Context, rev string) (string, error) {
	if rev == "" {
		rev = "HEAD"
	}
	if strings.HasPrefix(rev, "-") {
		return "", &GitError{Command: "rev-parse", Output: "bad revision " + rev, Err: ErrRevisionMissing}
	}
	out, err := b.run(ctx, nil, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		var gitErr *GitError
		if errors.As(err, &gitErr) && gitErr.Err == nil {
			gitErr.Err = ErrRevisionMissing
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *CLIBackend) Blame(ctx context.Context, path, rev string, opts BlameOptions) (BlameResult, error) {
	args := []string{"blame", "--porcelain"}
	if opts.IgnoreWhitespace {
		args = append(args, "-w")
	}
	if opts.Contents != nil {
		args = append(args, "--contents", "-")
	}
	withRev := args
	if rev != "" {
		withRev = append(append([]string(nil), args...), rev)
	}

	out, err := b.run(ctx, opts.Contents, append(withRev, "--", path)...)
	// git before 2.41 refuses a revision together with --contents and
	// annotates against HEAD instead
	var gitErr *GitError
	if err != nil && rev != "" && opts.Contents != nil && errors.As(err, &gitErr) &&
		strings.Contains(gitErr.Output, "cannot use --contents with final commit") {
		head, herr := b.Head(ctx)
		if herr == nil && head == rev {
			out, err = b.run(ctx, opts.Contents, append(args, "--", path)...)
		}
	}
	if err != nil {
		return BlameResult{}, err
	}
	return parsePorcelain(bytes.NewReader(out))
}

func (b *CLIBackend) CommitInfo(ctx context.Context, id string) (models.CommitInfo, error) {
	out, err := b.run(ctx, nil, "show", "-s", "--format=%H%x00%an%x00%ae%x00%aI", id, "--")
	if err != nil {
		return models.CommitInfo{}, err
	}
	parts := strings.Split(strings.TrimSpace(string(out)), "\x00")
	if len(parts) != 4 {
		return models.CommitInfo{}, fmt.Errorf("git show %s: unexpected output %q", id, out)
	}
	when, err := time.Parse(time.RFC3339, parts[3])
	if err != nil {
		return models.CommitInfo{}, fmt.Errorf("git show %s: bad author date: %w", id, err)
	}
	return models.NewCommitInfo(parts[0], parts[1], parts[2], when), nil
}

func (b *CLIBackend) Parents(ctx context.Context, id string) ([]string, error) {
	out, err := b.run(ctx, nil, "rev-list", "--parents", "-n", "1", id, "--")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return nil, &GitError{Command: "rev-list", Output: "no such commit " + id, Err: ErrRevisionMissing}
	}
	return fields[1:], nil
}

func (b *CLIBackend) ChangedFiles(ctx context.Context, id string) ([]string, error) {
	parents, err := b.Parents(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []byte
	if len(parents) == 0 {
		out, err = b.run(ctx, nil, "ls-tree", "-r", "--name-only", "-z", id)
	} else {
		out, err = b.run(ctx, nil, "diff-tree", "-r", "--name-only", "--no-commit-id", "--diff-filter=AMRC", "-z", parents[0], id)
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range strings.Split(string(out), "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

func (b *CLIBackend) FileLines(ctx context.Context, id, path string) ([]string, error) {
	out, err := b.run(ctx, nil, "show", id+":"+path)
	if err != nil {
		return nil, err
	}
	return splitLines(string(out)), nil
}

// Version returns the git version string, used by `lineauthor doctor`
func (b *CLIBackend) Version(ctx context.Context) (string, error) {
	out, err := b.run(ctx, nil, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(string(out), "git version ")), nil
}

var _ Backend = (*CLIBackend)(nil)

