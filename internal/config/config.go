// Package config loads the shipdeck client configuration: control
// plane connection settings plus named app presets that pre-fill
// deploy requests.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"shipdeck/internal/api"
	"shipdeck/internal/archive"
	"shipdeck/internal/deploy"
	"shipdeck/internal/security"
)

// SourceConfig is the YAML form of a deploy source descriptor. Type
// selects the variant; the other fields belong to that variant.
type SourceConfig struct {
	Type string `yaml:"type"`

	// code
	Folders      []FolderConfig `yaml:"folders"`
	Runtime      string         `yaml:"runtime"`
	StartCommand string         `yaml:"start_command"`
	Dockerfile   string         `yaml:"dockerfile"`

	// git
	GitURL    string   `yaml:"git_url"`
	Branch    string   `yaml:"branch"`
	GitFolder []string `yaml:"git_folders"`
	TokenEnv  string   `yaml:"token_env"`

	// image
	Image string `yaml:"image"`

	// image_file
	ImagePath   string `yaml:"image_path"`
	ImageName   string `yaml:"image_name"`
	PortMapping string `yaml:"port_mapping"`
}

// FolderConfig is one build folder of a code source.
type FolderConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ProvisionConfig describes servers to create as part of a deploy.
type ProvisionConfig struct {
	SnapshotID string `yaml:"snapshot_id"`
	Region     string `yaml:"region"`
	Size       string `yaml:"size"`
	Count      int    `yaml:"count"`
}

// AppConfig is the YAML form of one deploy preset.
type AppConfig struct {
	Project     string           `yaml:"project"`
	Environment string           `yaml:"environment"`
	Port        int              `yaml:"port"`
	Source      SourceConfig     `yaml:"source"`
	Env         []string         `yaml:"env"` // KEY=VALUE, order preserved
	Tags        []string         `yaml:"tags"`
	Servers     []string         `yaml:"servers"`
	Exclude     []string         `yaml:"exclude"`
	Provision   *ProvisionConfig `yaml:"provision"`
	Domain      string           `yaml:"domain"`
	SetupDomain bool             `yaml:"setup_domain"`
}

// Defaults applies to apps that leave project or environment unset.
type Defaults struct {
	Project     string `yaml:"project"`
	Environment string `yaml:"environment"`
}

// Config is the root configuration structure.
type Config struct {
	APIURL   string               `yaml:"api_url"`
	Token    string               `yaml:"token"`
	TokenEnv string               `yaml:"token_env"`
	LogFile  string               `yaml:"log_file"`
	DBPath   string               `yaml:"db_path"`
	Defaults Defaults             `yaml:"defaults"`
	Apps     map[string]AppConfig `yaml:"apps"`
}

// App is a validated deploy preset with defaults applied.
type App struct {
	Name        string
	Project     string
	Environment string
	Config      AppConfig
}

// LoadConfig loads and validates the configuration from a YAML file.
func LoadConfig(configPath string) (*Config, map[string]*App, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if config.APIURL == "" {
		return nil, nil, fmt.Errorf("missing required 'api_url' field")
	}
	if config.Apps == nil {
		config.Apps = make(map[string]AppConfig)
	}

	apps := make(map[string]*App)
	for name, appConfig := range config.Apps {
		project := appConfig.Project
		if project == "" {
			project = config.Defaults.Project
		}
		environment := appConfig.Environment
		if environment == "" {
			environment = config.Defaults.Environment
		}

		app := &App{Name: name, Project: project, Environment: environment, Config: appConfig}
		if errs := validateApp(app); len(errs) > 0 {
			return nil, nil, fmt.Errorf("invalid configuration for app '%s':\n%s",
				name, strings.Join(errs, "\n"))
		}
		apps[name] = app
	}

	return &config, apps, nil
}

// validateApp checks one preset; the per-field checks mirror the
// deploy request gate so config errors surface at load time rather
// than mid-deploy.
func validateApp(app *App) []string {
	var errs []string
	appErr := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("  - App '%s': ", app.Name)+fmt.Sprintf(format, args...))
	}

	if err := security.ValidateName("app", app.Name); err != nil {
		appErr("%v", err)
	}
	if app.Project == "" {
		appErr("missing 'project' (set it on the app or under defaults)")
	}
	if app.Environment == "" {
		appErr("missing 'environment' (set it on the app or under defaults)")
	}
	if app.Config.Port <= 0 || app.Config.Port > 65535 {
		appErr("port %d out of range", app.Config.Port)
	}

	switch app.Config.Source.Type {
	case deploy.SourceCode:
		if len(app.Config.Source.Folders) == 0 {
			appErr("code source needs at least one folder")
		}
	case deploy.SourceGit:
		if app.Config.Source.GitURL == "" {
			appErr("git source needs 'git_url'")
		} else if err := security.ValidateGitURL(app.Config.Source.GitURL); err != nil {
			appErr("%v", err)
		}
	case deploy.SourceImage:
		if app.Config.Source.Image == "" {
			appErr("image source needs 'image'")
		}
	case deploy.SourceImageFile:
		if app.Config.Source.ImagePath == "" || app.Config.Source.ImageName == "" {
			appErr("image_file source needs 'image_path' and 'image_name'")
		}
	case "":
		appErr("missing 'source.type' (code, git, image, image_file)")
	default:
		appErr("unknown source type %q", app.Config.Source.Type)
	}

	for _, entry := range app.Config.Env {
		if !strings.Contains(entry, "=") {
			appErr("env entry %q is not KEY=VALUE", entry)
		}
	}

	return errs
}

// ResolveToken returns the API token: the inline value, or the
// environment variable named by token_env.
func (c *Config) ResolveToken() (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	if c.TokenEnv != "" {
		if value := os.Getenv(c.TokenEnv); value != "" {
			return value, nil
		}
		return "", fmt.Errorf("token environment variable %s is empty", c.TokenEnv)
	}
	return "", fmt.Errorf("no API token configured (set 'token' or 'token_env')")
}

// DeployRequest converts the preset into a deploy request. The service
// name is the app name.
func (app *App) DeployRequest() (*deploy.Request, error) {
	req := &deploy.Request{
		Identity: api.ServiceIdentity{
			Project:     app.Project,
			Environment: app.Environment,
			Service:     app.Name,
		},
		Name:        app.Name,
		Port:        app.Config.Port,
		Tags:        app.Config.Tags,
		ServerIPs:   app.Config.Servers,
		Excludes:    app.Config.Exclude,
		Domain:      app.Config.Domain,
		SetupDomain: app.Config.SetupDomain,
	}

	for _, entry := range app.Config.Env {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("env entry %q is not KEY=VALUE", entry)
		}
		req.Env = append(req.Env, deploy.EnvVar{Key: key, Value: value})
	}

	source := app.Config.Source
	switch source.Type {
	case deploy.SourceCode:
		code := &deploy.CodeSource{
			Runtime:      source.Runtime,
			StartCommand: source.StartCommand,
			Descriptor:   source.Dockerfile,
		}
		for _, folder := range source.Folders {
			code.Folders = append(code.Folders, archive.Folder{Name: folder.Name, Path: folder.Path})
		}
		req.Code = code
	case deploy.SourceGit:
		git := &deploy.GitSource{
			URL:     source.GitURL,
			Branch:  source.Branch,
			Folders: source.GitFolder,
		}
		if source.TokenEnv != "" {
			git.Token = os.Getenv(source.TokenEnv)
		}
		req.Git = git
	case deploy.SourceImage:
		req.Image = &deploy.ImageSource{Reference: source.Image}
	case deploy.SourceImageFile:
		req.ImageFile = &deploy.ImageFileSource{
			Path:        source.ImagePath,
			ImageName:   source.ImageName,
			PortMapping: source.PortMapping,
		}
	default:
		return nil, fmt.Errorf("unknown source type %q", source.Type)
	}

	if app.Config.Provision != nil {
		req.Provision = &deploy.ProvisionSpec{
			SnapshotID: app.Config.Provision.SnapshotID,
			Region:     app.Config.Provision.Region,
			Size:       app.Config.Provision.Size,
			Count:      app.Config.Provision.Count,
		}
	}

	return req, nil
}
