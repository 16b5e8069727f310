package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/trellosync/trellosync/internal/core/config"
	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/github"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

var (
	eventFile string
	workflow  string
	repoName  string
	orgName   string
	prNumber  int
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile Trello cards against one pull request event",
	Long: `Reconcile the board against a single pull request event.
The event payload is read from --event or GITHUB_EVENT_PATH (the Actions
runner convention); configuration comes from a yaml file or INPUT_* env vars.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSync()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&eventFile, "event", "", "Path to webhook event JSON file")
	syncCmd.Flags().StringVar(&workflow, "workflow", "", "Workflow preset to run (default: pr-sync)")
	syncCmd.Flags().StringVar(&repoName, "repo", "", "Repository name (override)")
	syncCmd.Flags().StringVar(&orgName, "org", "", "Organization or owner name (override)")
	syncCmd.Flags().IntVar(&prNumber, "number", 0, "Pull request number (override)")
}

func runSync() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	event, err := github.LoadEvent(eventFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load event: %v\n", err)
		os.Exit(1)
	}

	owner := event.Owner()
	repo := event.Repo()
	number := event.Number()
	if orgName != "" {
		owner = orgName
	}
	if repoName != "" {
		repo = repoName
	}
	if prNumber != 0 {
		number = prNumber
	}
	if owner == "" || repo == "" || number == 0 {
		fmt.Fprintln(os.Stderr, "event does not identify a pull request (use --org/--repo/--number to override)")
		os.Exit(1)
	}

	ctx := context.Background()

	deps := &pipeline.Dependencies{
		GitHub: github.NewClient(ctx, cfg.GitHubToken, owner, repo, number),
		Trello: trello.NewClient(cfg.TrelloAPIKey, cfg.TrelloAuthToken, cfg.TrelloCardPosition),
	}

	// find_cards refetches the live PR; the initial snapshot only needs the
	// coordinates.
	pr := &pipeline.PullRequest{
		Org:    owner,
		Repo:   repo,
		Number: number,
	}

	pCtx := pipeline.NewContext(ctx, pr, event.Action, cfg)

	wf := workflow
	if wf == "" {
		wf = cfg.Workflow
	}
	stepNames := pipeline.ResolveSteps(cfg.Steps, wf)

	slog.Info("starting sync",
		"repo", owner+"/"+repo, "pr", number, "action", event.Action, "steps", stepNames)

	isCI := os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"

	if isCI {
		err = runPipelineCI(pCtx, deps, stepNames)
	} else {
		err = runPipelineTUI(pCtx, deps, stepNames)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		os.Exit(1)
	}

	if pCtx.Result.FailureMessage != "" {
		fmt.Fprintln(os.Stderr, pCtx.Result.FailureMessage)
		os.Exit(1)
	}
}

// loadConfig prefers a yaml file (explicit flag, then auto-discovery) and
// falls back to INPUT_* environment variables, the Actions input convention.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	path := config.FindConfigPath(cfgFile)
	if path != "" {
		if verbose {
			slog.Debug("loading configuration file", "path", path)
		}
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
