package repository

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/models"
)

// GitHubProvider implements Provider for GitHub and GitHub Enterprise.
type GitHubProvider struct {
	client *gogithub.Client
	token  string
	host   string
}

// NewGitHub creates a GitHubProvider from the given configuration.
func NewGitHub(cfg config.GitHubConfig) (*GitHubProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	// Support GitHub Enterprise by overriding the base URL.
	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubProvider{client: client, token: cfg.Token, host: cfg.Host}, nil
}

func (g *GitHubProvider) Name() string      { return "github" }
func (g *GitHubProvider) AuthToken() string { return g.token }

func (g *GitHubProvider) ListRepos(ctx context.Context, opts ListReposOptions) ([]models.Repository, error) {
	perPage := opts.PerPage
	if perPage == 0 {
		perPage = 100
	}
	page := opts.Page
	if page == 0 {
		page = 1
	}

	ghRepos, _, err := g.client.Repositories.List(ctx, "", &gogithub.RepositoryListOptions{
		Visibility:  opts.Visibility,
		ListOptions: gogithub.ListOptions{PerPage: perPage, Page: page},
	})
	if err != nil {
		return nil, fmt.Errorf("listing GitHub repos: %w", err)
	}

	return g.convertRepos(ghRepos), nil
}

func (g *GitHubProvider) GetRepo(ctx context.Context, owner, name string) (*models.Repository, error) {
	r, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("getting GitHub repo %s/%s: %w", owner, name, err)
	}
	repos := g.convertRepos([]*gogithub.Repository{r})
	return &repos[0], nil
}

func (g *GitHubProvider) convertRepos(ghRepos []*gogithub.Repository) []models.Repository {
	repos := make([]models.Repository, 0, len(ghRepos))
	for _, r := range ghRepos {
		fullName := r.GetFullName()
		repos = append(repos, models.Repository{
			ID:            RepoID("github", fullName),
			Provider:      "github",
			Owner:         r.GetOwner().GetLogin(),
			Name:          r.GetName(),
			FullName:      fullName,
			CloneURL:      r.GetCloneURL(),
			DefaultBranch: r.GetDefaultBranch(),
			Language:      r.GetLanguage(),
		})
	}
	return repos
}
