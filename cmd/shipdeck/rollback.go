package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shipdeck/internal/api"
	"shipdeck/internal/config"
	"shipdeck/internal/deploy"
	"shipdeck/internal/history"
	"shipdeck/internal/rollback"
	"shipdeck/internal/term"

	"github.com/spf13/cobra"
)

var (
	rollbackConfigFile   string
	rollbackLogFile      string
	rollbackDBPath       string
	rollbackAssumeYes    bool
	rollbackDeploymentID string
	rollbackExcludeID    string
	rollbackList         bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback APP_NAME",
	Short: "Roll an app back to an earlier deployment",
	Long: `Roll an app back to a previous successful deployment.

Without --deployment the most recent successful deployment is used.
Use --list to see all eligible targets first.

If some of the servers that deployment originally ran on are no longer
reachable, you are asked whether to continue on the reachable subset.

Examples:
  shipdeck rollback web --list
  shipdeck rollback web
  shipdeck rollback web --deployment dep-42`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().StringVarP(&rollbackConfigFile, "config", "c", getEnvOrDefault("SHIPDECK_CONFIG_FILE", ""), "Path to shipdeck.yaml configuration file")
	rollbackCmd.Flags().StringVar(&rollbackLogFile, "log", getEnvOrDefault("SHIPDECK_LOG_FILE", ""), "Path to log file")
	rollbackCmd.Flags().StringVar(&rollbackDBPath, "db", getEnvOrDefault("SHIPDECK_DB_PATH", ""), "Path to SQLite run history database")
	rollbackCmd.Flags().BoolVarP(&rollbackAssumeYes, "yes", "y", false, "Answer yes to all confirmations")
	rollbackCmd.Flags().StringVar(&rollbackDeploymentID, "deployment", "", "Deployment ID to roll back to (defaults to the most recent successful one)")
	rollbackCmd.Flags().StringVar(&rollbackExcludeID, "exclude", "", "Deployment ID to exclude from candidates (the one being rolled back from)")
	rollbackCmd.Flags().BoolVar(&rollbackList, "list", false, "List eligible rollback targets and exit")
}

func runRollback(cmd *cobra.Command, args []string) error {
	appName := args[0]

	configFile, err := resolveConfigPath(rollbackConfigFile)
	if err != nil {
		return err
	}

	cfg, apps, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, exists := apps[appName]
	if !exists {
		return fmt.Errorf("app '%s' not found in config file %s", appName, configFile)
	}

	logger, logFileHandle, err := setupLogging(pickPath(rollbackLogFile, cfg.LogFile, "./shipdeck.log"))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	client, err := newAPIClient(cfg, logger)
	if err != nil {
		return err
	}

	hist, err := history.New(pickPath(rollbackDBPath, cfg.DBPath, "./shipdeck.db"))
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer hist.Close()

	identity := api.ServiceIdentity{
		Project:     app.Project,
		Environment: app.Environment,
		Service:     app.Name,
	}

	renderer := term.NewRenderer()
	orch := rollback.NewOrchestrator(client, term.NewPrompter(rollbackAssumeYes), logger)
	orch.History = hist
	orch.Notify = func(u rollback.Update) {
		renderer.Progress(u.Percent, u.Message)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	candidates, err := orch.LoadCandidates(ctx, identity, rollbackExcludeID)
	if err != nil {
		return fmt.Errorf("failed to load rollback candidates: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no eligible rollback targets for '%s'", appName)
	}

	if rollbackList {
		printCandidates(appName, candidates)
		return nil
	}

	candidate, err := selectCandidate(candidates, rollbackDeploymentID)
	if err != nil {
		return err
	}

	fmt.Printf("Rolling back '%s' (%s) to deployment %s", appName, identity, candidate.DeploymentID)
	if candidate.Version != "" {
		fmt.Printf(" (version %s)", candidate.Version)
	}
	fmt.Println()

	result, err := orch.Run(ctx, identity, candidate)
	if err != nil {
		if errors.Is(err, deploy.ErrCancelled) {
			renderer.Warn("Rollback cancelled")
			return nil
		}
		renderer.Fail("Rollback failed")
		return err
	}

	printServerOutcomes(renderer, result.Servers)

	if !result.Success {
		renderer.Fail(fmt.Sprintf("Rollback of '%s' did not complete on all servers", appName))
		if result.Message != "" {
			fmt.Printf("  %s\n", result.Message)
		}
		return fmt.Errorf("rollback failed")
	}

	renderer.Success(fmt.Sprintf("Rollback of '%s' complete", appName))
	return nil
}

// selectCandidate picks the rollback target: an explicit deployment id
// if given, otherwise the most recent candidate.
func selectCandidate(candidates []api.RollbackCandidate, deploymentID string) (api.RollbackCandidate, error) {
	if deploymentID == "" {
		return candidates[0], nil
	}
	for _, candidate := range candidates {
		if candidate.DeploymentID == deploymentID {
			return candidate, nil
		}
	}
	return api.RollbackCandidate{}, fmt.Errorf("deployment '%s' is not an eligible rollback target (use --list to see candidates)", deploymentID)
}

func printCandidates(appName string, candidates []api.RollbackCandidate) {
	fmt.Printf("Rollback targets for '%s':\n", appName)
	for i, candidate := range candidates {
		marker := " "
		if i == 0 {
			marker = "*" // default target
		}
		fmt.Printf("%s %-12s version=%-12s created=%s servers=%d deployed_by=%s\n",
			marker, candidate.DeploymentID, candidate.Version, candidate.CreatedAt,
			len(candidate.ServerIPs), candidate.DeployedBy)
	}
}
