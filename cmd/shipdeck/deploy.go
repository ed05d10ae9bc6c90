package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shipdeck/internal/config"
	"shipdeck/internal/deploy"
	"shipdeck/internal/gitsource"
	"shipdeck/internal/history"
	"shipdeck/internal/term"

	"github.com/spf13/cobra"
)

var (
	deployConfigFile string
	deployLogFile    string
	deployDBPath     string
	deployAssumeYes  bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy APP_NAME",
	Short: "Deploy an app to the backend",
	Long: `Deploy an app defined in your shipdeck.yaml configuration.

The source is packaged (or referenced, for git and image sources) and
sent to the backend, which streams progress back until every target
server reports a result.

If servers from the previous deployment are not part of the new target
set, you are asked whether to clean them up before the deploy starts.

Example:
  shipdeck deploy web`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVarP(&deployConfigFile, "config", "c", getEnvOrDefault("SHIPDECK_CONFIG_FILE", ""), "Path to shipdeck.yaml configuration file")
	deployCmd.Flags().StringVar(&deployLogFile, "log", getEnvOrDefault("SHIPDECK_LOG_FILE", ""), "Path to log file")
	deployCmd.Flags().StringVar(&deployDBPath, "db", getEnvOrDefault("SHIPDECK_DB_PATH", ""), "Path to SQLite run history database")
	deployCmd.Flags().BoolVarP(&deployAssumeYes, "yes", "y", false, "Answer yes to all confirmations")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	appName := args[0]

	configFile, err := resolveConfigPath(deployConfigFile)
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

	logger, logFileHandle, err := setupLogging(pickPath(deployLogFile, cfg.LogFile, "./shipdeck.log"))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	client, err := newAPIClient(cfg, logger)
	if err != nil {
		return err
	}

	hist, err := history.New(pickPath(deployDBPath, cfg.DBPath, "./shipdeck.db"))
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer hist.Close()

	req, err := app.DeployRequest()
	if err != nil {
		return err
	}

	renderer := term.NewRenderer()
	orch := deploy.NewOrchestrator(client, term.NewPrompter(deployAssumeYes), logger)
	orch.Resolver = gitsource.NewResolver(logger)
	orch.History = hist
	orch.Notify = func(u deploy.Update) {
		renderer.Progress(u.Percent, u.Message)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Deploying '%s' (%s)...\n", appName, req.Identity)
	result, err := orch.Run(ctx, req)
	if err != nil {
		if errors.Is(err, deploy.ErrCancelled) {
			renderer.Warn("Deploy cancelled")
			return nil
		}
		renderer.Fail("Deploy failed")
		return err
	}

	printServerOutcomes(renderer, result.Servers)

	if !result.Success {
		renderer.Fail(fmt.Sprintf("Deploy of '%s' did not complete on all servers", appName))
		if result.Error != "" {
			fmt.Printf("  %s\n", result.Error)
		}
		return fmt.Errorf("deploy failed")
	}

	renderer.Success(fmt.Sprintf("Deploy of '%s' complete", appName))
	if result.Domain != "" {
		fmt.Printf("  Available at: https://%s\n", result.Domain)
	}
	return nil
}
