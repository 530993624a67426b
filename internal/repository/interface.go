// Package repository talks to git hosting platforms and materialises
// local checkouts for analysis.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/patternscope/patternscope/models"
)

// Provider abstracts read operations against a Git hosting platform.
// Implementations: GitHub (incl. Enterprise) and GitLab (incl. self-hosted).
type Provider interface {
	// Name identifies the provider ("github" or "gitlab").
	Name() string

	// ListRepos returns repositories the authenticated user can access.
	ListRepos(ctx context.Context, opts ListReposOptions) ([]models.Repository, error)

	// GetRepo returns a single repository by owner and name.
	GetRepo(ctx context.Context, owner, name string) (*models.Repository, error)

	// AuthToken returns the credential used for git clone.
	AuthToken() string
}

// ListReposOptions controls pagination and filtering for ListRepos.
type ListReposOptions struct {
	PerPage    int
	Page       int
	Visibility string // "public" | "private" | "all"
}

// RepoID builds the stable internal id for a hosted repository. IDs stay
// valid across re-registration so job history survives a refresh.
func RepoID(provider, fullName string) string {
	return provider + ":" + strings.ToLower(fullName)
}

// DetectProvider infers the hosting platform from a repository URL.
func DetectProvider(repoURL string) (string, error) {
	lower := strings.ToLower(repoURL)
	switch {
	case strings.Contains(lower, "github.com"):
		return "github", nil
	case strings.Contains(lower, "gitlab"):
		return "gitlab", nil
	default:
		return "", fmt.Errorf("cannot determine provider for %s", repoURL)
	}
}
