package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"shipdeck/internal/api"
	"shipdeck/internal/config"
	"shipdeck/internal/term"
	"shipdeck/pkg/fileutil"
)

const configFilename = "shipdeck.yaml"

// resolveConfigPath finds the configuration file: the explicit flag
// value if set, otherwise the default search locations.
func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	searchPaths := fileutil.ConfigSearchPaths(configFilename)
	found := fileutil.FirstExisting(searchPaths)
	if found == "" {
		fmt.Fprintf(os.Stderr, "Error: No configuration file found in default locations:\n")
		for _, path := range searchPaths {
			fmt.Fprintf(os.Stderr, "  - %s\n", path)
		}
		fmt.Fprintf(os.Stderr, "Use --config flag to specify a custom location\n")
		return "", fmt.Errorf("configuration file not found")
	}
	return found, nil
}

// newAPIClient builds the backend client from the loaded config.
func newAPIClient(cfg *config.Config, logger *slog.Logger) (*api.Client, error) {
	token, err := cfg.ResolveToken()
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.APIURL, api.NewStaticCredentials(token), logger), nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return slog.New(handler), file, nil
}

// setupServeLogging logs to both the file and stdout, for the
// long-running status API.
func setupServeLogging(logPath string) (*slog.Logger, *os.File, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return slog.New(handler), file, nil
}

// printServerOutcomes renders the per-server breakdown of a finished
// deploy or rollback.
func printServerOutcomes(renderer *term.Renderer, servers []api.ServerOutcome) {
	for _, outcome := range servers {
		if outcome.Success {
			renderer.Success(fmt.Sprintf("  %s", outcome.IP))
		} else if outcome.Error != "" {
			renderer.Fail(fmt.Sprintf("  %s: %s", outcome.IP, outcome.Error))
		} else {
			renderer.Fail(fmt.Sprintf("  %s", outcome.IP))
		}
	}
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// pickPath returns the first non-empty path, so flags beat config file
// values which beat the built-in default.
func pickPath(flagValue, configValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if configValue != "" {
		return configValue
	}
	return fallback
}
