package main

import (
	"fmt"
	"time"

	"shipdeck/internal/config"
	"shipdeck/internal/history"

	"github.com/spf13/cobra"
)

var (
	statusConfigFile string
	statusDBPath     string
	statusLimit      int
)

var statusCmd = &cobra.Command{
	Use:   "status [APP_NAME]",
	Short: "Show recorded deploy and rollback runs",
	Long: `Show the run history recorded by this machine.

Without arguments the latest run of every service is listed. With an
app name, recent runs for that app are shown.

Examples:
  shipdeck status
  shipdeck status web`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusConfigFile, "config", "c", getEnvOrDefault("SHIPDECK_CONFIG_FILE", ""), "Path to shipdeck.yaml configuration file")
	statusCmd.Flags().StringVar(&statusDBPath, "db", getEnvOrDefault("SHIPDECK_DB_PATH", ""), "Path to SQLite run history database")
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of recent runs to show per app")
}

func runStatus(cmd *cobra.Command, args []string) error {
	configFile, err := resolveConfigPath(statusConfigFile)
	if err != nil {
		return err
	}

	cfg, apps, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	hist, err := history.New(pickPath(statusDBPath, cfg.DBPath, "./shipdeck.db"))
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer hist.Close()

	ctx := cmd.Context()

	if len(args) == 0 {
		runs, err := hist.AllServicesStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to load status: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}
		fmt.Printf("%-30s %-10s %-12s %s\n", "SERVICE", "KIND", "STATUS", "STARTED")
		for _, run := range runs {
			service := fmt.Sprintf("%s/%s/%s", run.Project, run.Environment, run.Service)
			fmt.Printf("%-30s %-10s %-12s %s\n", service, run.Kind, run.Status, formatRunTime(run))
		}
		return nil
	}

	appName := args[0]
	app, exists := apps[appName]
	if !exists {
		return fmt.Errorf("app '%s' not found in config file %s", appName, configFile)
	}

	runs, err := hist.RecentRuns(ctx, app.Project, app.Environment, app.Name, statusLimit)
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Printf("No runs recorded for '%s' yet.\n", appName)
		return nil
	}

	fmt.Printf("Recent runs for '%s':\n", appName)
	for _, run := range runs {
		line := fmt.Sprintf("  %-10s %-12s %s", run.Kind, run.Status, formatRunTime(run))
		if run.DeploymentID != nil {
			line += fmt.Sprintf(" deployment=%s", *run.DeploymentID)
		}
		if run.DurationSeconds != nil {
			line += fmt.Sprintf(" (%.1fs)", *run.DurationSeconds)
		}
		fmt.Println(line)
		if run.ErrorMessage != nil {
			fmt.Printf("             %s\n", *run.ErrorMessage)
		}
	}
	return nil
}

func formatRunTime(run history.Run) string {
	return run.StartedAt.Local().Format(time.RFC3339)
}
