package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination writes JSONL data to a file in a git repo, commits and
// pushes it. Every snapshot with new chart data is its own commit, so earlier
// runs stay reachable in history.
type GitDestination struct {
	repo   string // path to the local clone
	file   string // file path within the repo
	branch string // branch to commit and push to
	output io.Writer
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local clone whose origin accepts pushes.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{
		repo:   repo,
		file:   file,
		branch: branch,
		output: os.Stderr,
	}
}

func (d *GitDestination) Name() string {
	return fmt.Sprintf("git:%s@%s/%s", d.repo, d.branch, d.file)
}

// Write writes data to the configured file, commits and pushes, and returns
// the destination name suffixed with the commit holding the snapshot. The
// header line is ignored when comparing with the committed file: if the
// chart records are unchanged no commit is made and the current HEAD is
// returned.
func (d *GitDestination) Write(ctx context.Context, runID string, data []byte) (string, error) {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return "", fmt.Errorf("git checkout: %w", err)
	}

	// The remote might not have the branch yet.
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	filePath := filepath.Join(d.repo, d.file)
	prev, err := os.ReadFile(filePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read file: %w", err)
	}
	if err == nil && bytes.Equal(body(prev), body(data)) {
		return d.location(ctx)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := d.git(ctx, "add", d.file); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}
	msg := "backup: chart snapshot before run " + runID
	if err := d.git(ctx, "commit", "-m", msg); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	if err := d.git(ctx, "push", "origin", d.branch); err != nil {
		return "", fmt.Errorf("git push: %w", err)
	}
	return d.location(ctx)
}

func (d *GitDestination) location(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--short", "HEAD")
	cmd.Dir = d.repo
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return d.Name() + "#" + strings.TrimSpace(string(out)), nil
}

// body returns everything after the JSONL header line.
func body(data []byte) []byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[i+1:]
	}
	return nil
}

func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	cmd.Stdout = d.output
	cmd.Stderr = d.output
	return cmd.Run()
}
