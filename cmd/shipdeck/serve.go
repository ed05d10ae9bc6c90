package main

import (
	"fmt"

	"shipdeck/internal/config"
	"shipdeck/internal/history"
	"shipdeck/internal/server"

	"github.com/spf13/cobra"
)

var (
	serveConfigFile string
	serveLogFile    string
	serveDBPath     string
	serveHost       string
	servePort       int
	serveTestMode   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local status API",
	Long: `Start the read-only HTTP API that exposes run history.

The API serves the latest run per service and recent run history. It
only reads the local SQLite database and never talks to the deployment
backend.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", getEnvOrDefault("SHIPDECK_CONFIG_FILE", ""), "Path to shipdeck.yaml configuration file")
	serveCmd.Flags().StringVar(&serveLogFile, "log", getEnvOrDefault("SHIPDECK_LOG_FILE", ""), "Path to log file")
	serveCmd.Flags().StringVar(&serveDBPath, "db", getEnvOrDefault("SHIPDECK_DB_PATH", ""), "Path to SQLite run history database")
	serveCmd.Flags().StringVar(&serveHost, "host", getEnvOrDefault("SHIPDECK_HOST", "127.0.0.1"), "Host to bind to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", getEnvOrDefaultInt("SHIPDECK_PORT", 5000), "Port to listen on")
	serveCmd.Flags().BoolVar(&serveTestMode, "test-mode", false, "Disable rate limiting (for tests)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, err := resolveConfigPath(serveConfigFile)
	if err != nil {
		return err
	}

	cfg, apps, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, logFileHandle, err := setupServeLogging(pickPath(serveLogFile, cfg.LogFile, "./shipdeck.log"))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting shipdeck status API")

	if len(apps) == 0 {
		logger.Warn("No apps configured in config file", "config", configFile)
	}

	registry := config.NewRegistry(apps)

	dbPath := pickPath(serveDBPath, cfg.DBPath, "./shipdeck.db")
	logger.Info("Opening run history database", "db", dbPath)
	hist, err := history.New(dbPath)
	if err != nil {
		logger.Error("Failed to open run history database", "error", err)
		return fmt.Errorf("failed to open run history database: %w", err)
	}
	defer hist.Close()

	srv := server.NewServer(registry, hist, logger, serveTestMode)

	logger.Info("Starting HTTP server", "host", serveHost, "port", servePort)
	if err := srv.Start(serveHost, servePort); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
