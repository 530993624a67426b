package repository

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/models"
)

// GitLabProvider implements Provider for GitLab (cloud and self-hosted).
type GitLabProvider struct {
	client *gitlab.Client
	token  string
	host   string
}

// NewGitLab creates a GitLabProvider from the given configuration.
func NewGitLab(cfg config.GitLabConfig) (*GitLabProvider, error) {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", cfg.Host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabProvider{client: client, token: cfg.Token, host: cfg.Host}, nil
}

func (g *GitLabProvider) Name() string      { return "gitlab" }
func (g *GitLabProvider) AuthToken() string { return g.token }

func (g *GitLabProvider) ListRepos(ctx context.Context, opts ListReposOptions) ([]models.Repository, error) {
	perPage := opts.PerPage
	if perPage == 0 {
		perPage = 100
	}
	page := opts.Page
	if page == 0 {
		page = 1
	}

	owned := true
	projects, _, err := g.client.Projects.ListProjects(&gitlab.ListProjectsOptions{
		Owned:       &owned,
		ListOptions: gitlab.ListOptions{PerPage: int64(perPage), Page: int64(page)},
	})
	if err != nil {
		return nil, fmt.Errorf("listing GitLab projects: %w", err)
	}

	return g.convertProjects(projects), nil
}

func (g *GitLabProvider) GetRepo(ctx context.Context, owner, name string) (*models.Repository, error) {
	nameWithNS := owner + "/" + name
	proj, _, err := g.client.Projects.GetProject(nameWithNS, nil)
	if err != nil {
		return nil, fmt.Errorf("getting GitLab project %s: %w", nameWithNS, err)
	}
	repos := g.convertProjects([]*gitlab.Project{proj})
	return &repos[0], nil
}

func (g *GitLabProvider) convertProjects(projects []*gitlab.Project) []models.Repository {
	repos := make([]models.Repository, 0, len(projects))
	for _, p := range projects {
		owner := p.PathWithNamespace
		if idx := strings.LastIndex(owner, "/"); idx >= 0 {
			owner = owner[:idx]
		}
		repos = append(repos, models.Repository{
			ID:            RepoID("gitlab", p.PathWithNamespace),
			Provider:      "gitlab",
			Owner:         owner,
			Name:          p.Path,
			FullName:      p.PathWithNamespace,
			CloneURL:      p.HTTPURLToRepo,
			DefaultBranch: p.DefaultBranch,
		})
	}
	return repos
}
