// Package gitsource pins git deploy sources to a concrete commit
// before upload, so the backend builds exactly what the user saw when
// confirming the deploy.
package gitsource

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Resolver resolves a repository branch to a commit SHA through the
// GitHub API. Non-GitHub hosts are passed through unresolved; the
// backend clones whatever the branch points at in that case.
type Resolver struct {
	Logger *slog.Logger

	// newClient is swappable in tests to point at an httptest server.
	newClient func(ctx context.Context, token string) *github.Client
}

// NewResolver creates a resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Logger:    logger,
		newClient: newGitHubClient,
	}
}

// newGitHubClient creates a GitHub API client, authenticated when a
// token is available.
func newGitHubClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Resolve returns the commit SHA the branch currently points at, or an
// empty string when the host is not GitHub. An API failure is returned
// as an error so the caller can decide whether pinning is mandatory.
func (r *Resolver) Resolve(ctx context.Context, repoURL, branch, token string) (string, error) {
	owner, repo, ok := parseGitHubRepo(repoURL)
	if !ok {
		r.Logger.Debug("Skipping commit resolution for non-GitHub host", "url", repoURL)
		return "", nil
	}

	client := r.newClient(ctx, token)
	ref, _, err := client.Repositories.GetBranch(ctx, owner, repo, branch, 3)
	if err != nil {
		return "", fmt.Errorf("resolving %s/%s@%s: %w", owner, repo, branch, err)
	}
	if ref.Commit == nil || ref.Commit.SHA == nil {
		return "", fmt.Errorf("branch %s of %s/%s has no commit", branch, owner, repo)
	}

	sha := *ref.Commit.SHA
	r.Logger.Info("Pinned git source", "repo", owner+"/"+repo, "branch", branch, "commit", sha)
	return sha, nil
}

// parseGitHubRepo extracts owner and repo from an HTTPS GitHub URL.
func parseGitHubRepo(repoURL string) (owner, repo string, ok bool) {
	u, err := url.Parse(repoURL)
	if err != nil || u.Host != "github.com" {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
