package gitsource

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v57/github"
)

func TestParseGitHubRepo(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		owner    string
		repo     string
		expectOK bool
	}{
		{name: "plain", input: "https://github.com/acme/app", owner: "acme", repo: "app", expectOK: true},
		{name: "dot git suffix", input: "https://github.com/acme/app.git", owner: "acme", repo: "app", expectOK: true},
		{name: "other host", input: "https://gitlab.com/acme/app", expectOK: false},
		{name: "missing repo", input: "https://github.com/acme", expectOK: false},
		{name: "not a url", input: "::::", expectOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			owner, repo, ok := parseGitHubRepo(tc.input)
			if ok != tc.expectOK {
				t.Fatalf("parseGitHubRepo(%q) ok = %v, expected %v", tc.input, ok, tc.expectOK)
			}
			if ok && (owner != tc.owner || repo != tc.repo) {
				t.Errorf("got %s/%s, expected %s/%s", owner, repo, tc.owner, tc.repo)
			}
		})
	}
}

func TestResolver_ResolvePinsCommit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/app/branches/main" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"name":"main","commit":{"sha":"abc123def"}}`))
	}))
	defer server.Close()

	resolver := NewResolver(slog.New(slog.NewTextHandler(io.Discard, nil)))
	resolver.newClient = func(ctx context.Context, token string) *github.Client {
		client := github.NewClient(nil)
		base, _ := url.Parse(server.URL + "/")
		client.BaseURL = base
		return client
	}

	sha, err := resolver.Resolve(context.Background(), "https://github.com/acme/app", "main", "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if sha != "abc123def" {
		t.Errorf("sha = %q, expected abc123def", sha)
	}
}

func TestResolver_SkipsNonGitHubHosts(t *testing.T) {
	resolver := NewResolver(slog.New(slog.NewTextHandler(io.Discard, nil)))

	sha, err := resolver.Resolve(context.Background(), "https://git.example.com/acme/app", "main", "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if sha != "" {
		t.Errorf("sha = %q, expected empty for non-GitHub host", sha)
	}
}
