package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/patternscope/patternscope/models"
)

// CloneResult holds information about a completed clone operation.
type CloneResult struct {
	LocalPath string
	Branch    string
	Commit    string
	tmpDir    bool // true if we created a temp dir and should clean it
}

// CloneManager shallow-clones repositories into temporary directories
// using go-git. Tokens is a per-provider credential lookup; providers
// without an entry clone anonymously.
type CloneManager struct {
	Tokens map[string]string
}

// NewCloneManager creates a CloneManager.
func NewCloneManager(tokens map[string]string) *CloneManager {
	if tokens == nil {
		tokens = map[string]string{}
	}
	return &CloneManager{Tokens: tokens}
}

// Clone clones the repository at repoURL to a temporary directory.
// token is used for HTTPS authentication; branch is optional (defaults to HEAD).
func (cm *CloneManager) Clone(ctx context.Context, repoURL, token, branch string) (*CloneResult, error) {
	tmpDir, err := os.MkdirTemp("", "patternscope-clone-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	cloneOpts := &gogit.CloneOptions{
		URL:      repoURL,
		Depth:    1, // shallow clone for speed
		Progress: nil,
	}

	if token != "" {
		cloneOpts.Auth = &githttp.BasicAuth{
			Username: "patternscope",
			Password: token,
		}
	}

	if branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		cloneOpts.SingleBranch = true
	}

	slog.Debug("Cloning repository",
		"url", repoURL,
		"branch", branch,
		"depth", 1,
		"dest", tmpDir,
	)

	repo, err := gogit.PlainCloneContext(ctx, tmpDir, false, cloneOpts)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("cloning %s: %w", repoURL, err)
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	resolvedBranch := head.Name().Short()
	if resolvedBranch == "" {
		resolvedBranch = branch
	}

	return &CloneResult{
		LocalPath: tmpDir,
		Branch:    resolvedBranch,
		Commit:    head.Hash().String(),
		tmpDir:    true,
	}, nil
}

// Cleanup removes the temporary directory created during Clone.
func (cm *CloneManager) Cleanup(result *CloneResult) {
	if result == nil || !result.tmpDir {
		return
	}
	if err := os.RemoveAll(result.LocalPath); err != nil {
		slog.Warn("Failed to clean up clone directory",
			"path", result.LocalPath, "error", err)
	}
}

// Prepare materialises a checkout for the analysis pipeline. It satisfies
// the pipeline's Workspace interface. Local rows (provider "local" with
// CloneURL holding a directory path) are served in place, never cloned.
func (cm *CloneManager) Prepare(ctx context.Context, repo *models.Repository) (string, func(), error) {
	if repo.Provider == "local" {
		lw := &LocalWorkspace{Path: repo.CloneURL}
		return lw.Prepare(ctx, repo)
	}
	result, err := cm.Clone(ctx, repo.CloneURL, cm.Tokens[repo.Provider], repo.DefaultBranch)
	if err != nil {
		return "", nil, err
	}
	return result.LocalPath, func() { cm.Cleanup(result) }, nil
}

// LocalWorkspace serves an already-checked-out directory, used by the
// analyze command when pointed at a local path and by self-scan.
type LocalWorkspace struct {
	Path string
}

// Prepare returns the configured path with a no-op cleanup.
func (l *LocalWorkspace) Prepare(_ context.Context, _ *models.Repository) (string, func(), error) {
	info, err := os.Stat(l.Path)
	if err != nil {
		return "", nil, fmt.Errorf("local workspace: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("local workspace %s is not a directory", l.Path)
	}
	return l.Path, func() {}, nil
}
