package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shipdeck/internal/deploy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shipdeck.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
api_url: https://panel.example.com/api
token: secret-token
defaults:
  project: shop
  environment: production
apps:
  web:
    port: 3000
    source:
      type: image
      image: registry.example.com/shop/web:latest
    env:
      - NODE_ENV=production
      - PORT=3000
    servers:
      - 10.0.0.1
      - 10.0.0.2
  worker:
    project: shop-jobs
    port: 9000
    source:
      type: git
      git_url: https://github.com/acme/worker
      branch: main
    servers:
      - 10.0.0.3
`

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, apps, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.APIURL != "https://panel.example.com/api" {
		t.Errorf("api_url = %q", cfg.APIURL)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d apps, expected 2", len(apps))
	}

	web := apps["web"]
	if web.Project != "shop" || web.Environment != "production" {
		t.Errorf("defaults not applied: %+v", web)
	}

	// Per-app project overrides the default.
	if apps["worker"].Project != "shop-jobs" {
		t.Errorf("worker project = %q, expected shop-jobs", apps["worker"].Project)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		wantText string
	}{
		{
			name:     "missing api url",
			content:  "token: x\n",
			wantText: "api_url",
		},
		{
			name: "app without source type",
			content: `
api_url: https://x.example.com
apps:
  web:
    port: 3000
`,
			wantText: "source.type",
		},
		{
			name: "git source without url",
			content: `
api_url: https://x.example.com
apps:
  web:
    port: 3000
    source:
      type: git
`,
			wantText: "git_url",
		},
		{
			name: "bad env entry",
			content: `
api_url: https://x.example.com
apps:
  web:
    port: 3000
    source:
      type: image
      image: registry/x
    env:
      - NOT_A_PAIR
`,
			wantText: "KEY=VALUE",
		},
		{
			name: "missing project",
			content: `
api_url: https://x.example.com
apps:
  web:
    port: 3000
    source:
      type: image
      image: registry/x
`,
			wantText: "project",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, _, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantText) {
				t.Errorf("error %q does not mention %q", err, tc.wantText)
			}
		})
	}
}

func TestApp_DeployRequest(t *testing.T) {
	path := writeConfig(t, validConfig)
	_, apps, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	req, err := apps["web"].DeployRequest()
	if err != nil {
		t.Fatalf("DeployRequest error: %v", err)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("converted request invalid: %v", err)
	}

	if req.Identity.String() != "shop/production/web" {
		t.Errorf("identity = %q", req.Identity)
	}
	if req.SourceType() != deploy.SourceImage {
		t.Errorf("source type = %q", req.SourceType())
	}

	// Env order must be preserved.
	if len(req.Env) != 2 || req.Env[0].Key != "NODE_ENV" || req.Env[1].Key != "PORT" {
		t.Errorf("env = %+v", req.Env)
	}
	if req.Env[0].Value != "production" {
		t.Errorf("env value = %q", req.Env[0].Value)
	}
}

func TestConfig_ResolveToken(t *testing.T) {
	cfg := &Config{Token: "inline"}
	token, err := cfg.ResolveToken()
	if err != nil || token != "inline" {
		t.Errorf("ResolveToken = (%q, %v)", token, err)
	}

	t.Setenv("SHIPDECK_TEST_TOKEN", "from-env")
	cfg = &Config{TokenEnv: "SHIPDECK_TEST_TOKEN"}
	token, err = cfg.ResolveToken()
	if err != nil || token != "from-env" {
		t.Errorf("ResolveToken = (%q, %v)", token, err)
	}

	cfg = &Config{}
	if _, err := cfg.ResolveToken(); err == nil {
		t.Error("expected error with no token configured")
	}
}

func TestRegistry(t *testing.T) {
	path := writeConfig(t, validConfig)
	_, apps, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	registry := NewRegistry(apps)
	if registry.Count() != 2 {
		t.Errorf("Count = %d", registry.Count())
	}

	names := registry.List()
	if len(names) != 2 || names[0] != "web" || names[1] != "worker" {
		t.Errorf("List = %v", names)
	}

	if _, err := registry.Get("nope"); err == nil {
		t.Error("expected error for unknown app")
	}
}
