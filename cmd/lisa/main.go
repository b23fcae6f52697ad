// Command lisa drives the autonomous issue-resolution loop: fetch an issue
// from the configured tracker, run an AI coding agent against it in an
// isolated worktree or branch, open a pull request, and update the tracker.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tarcisiopgs/lisa/internal/agent"
	"github.com/tarcisiopgs/lisa/internal/agent/clirunner"
	"github.com/tarcisiopgs/lisa/internal/config"
	"github.com/tarcisiopgs/lisa/internal/guardrails"
	"github.com/tarcisiopgs/lisa/internal/logging"
	"github.com/tarcisiopgs/lisa/internal/loop"
	"github.com/tarcisiopgs/lisa/internal/output"
	"github.com/tarcisiopgs/lisa/internal/platform"
	"github.com/tarcisiopgs/lisa/internal/platform/ghapi"
	"github.com/tarcisiopgs/lisa/internal/platform/ghcli"
	"github.com/tarcisiopgs/lisa/internal/process"
	"github.com/tarcisiopgs/lisa/internal/session"
	"github.com/tarcisiopgs/lisa/internal/tracker/file"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

var (
	configPath string
	dryRun     bool
	once       bool
	limit      int
	issueID    string
	verbosity  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lisa",
		Short: "Autonomous issue-resolution agent loop",
		Long: `lisa pulls issues from a tracker, launches an AI coding agent against each
one in an isolated git worktree or branch, opens a pull request for the
result, and moves the issue through the tracker's states. It runs either as
a daemon or for a single pass (--once), and rolls an in-flight issue back to
its previous state on interrupt or when its session fails. When every
configured provider is unavailable it stops instead, leaving the issue in
progress for the next run's orphan sweep to reclaim.`,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ./.lisa/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Fetch and log what would run, without launching an agent")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v, -vv, -vvv)")

	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the issue-resolution loop",
		Long: `Run fetches issues and drives them to completion. Without --once it runs
as a daemon, cooling down between sessions until interrupted. With --once
it processes a single issue (or the next queued one) and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process a single issue and exit")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many sessions (0 = unbounded)")
	cmd.Flags().StringVar(&issueID, "issue", "", "Target a specific issue id or URL instead of the queue")

	return cmd
}

func runLoop(ctx context.Context) error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	logger, logPath, closeLog, err := logging.NewFile(root, logging.VerbosityToLevel(verbosity))
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer closeLog()
	if logPath != "" {
		logger.Debug("logging to file", "path", logPath)
	}

	var feedback *output.Output
	if once || verbosity > 0 {
		feedback = output.Default()
	}

	path := configPath
	if path == "" {
		path = config.Path(root)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	guardrailsPath, err := guardrails.PathForCWD(root)
	if err != nil {
		return fmt.Errorf("resolve guardrails path: %w", err)
	}
	store, err := guardrails.New(guardrailsPath, filepath.Join(root, ".lisa", "guardrails.md"))
	if err != nil {
		return fmt.Errorf("open guardrails store: %w", err)
	}

	plat, err := buildPlatform(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build platform: %w", err)
	}

	trackerPath := filepath.Join(root, ".lisa", "issues.json")
	tr, err := file.New(trackerPath)
	if err != nil {
		return fmt.Errorf("open tracker: %w", err)
	}

	gitRunner := &worktree.DefaultGitRunner{}
	wtManager := worktree.NewManager(gitRunner)

	exec := &session.Executor{
		Platform:   plat,
		Factory:    defaultAgentFactory,
		Guardrails: store,
		Worktree:   wtManager,
		Git:        gitRunner,
		ModelSpecs: cfg.ModelSpecs(),
		Workflow:   cfg.SessionWorkflow(),
		Repos:      cfg.RepoSpecs(),
		BaseBranch: cfg.BaseBranch,
		Overseer:   cfg.OverseerSettings(),
		CacheDir:   filepath.Join(root, ".lisa", "cache"),
	}

	pctx := process.New(guardrailsPath, 64)
	source := cfg.ModelSourceConfig()

	if reclaimed, sweepErr := loop.OrphanSweep(ctx, tr, source); sweepErr != nil {
		logger.Warn("orphan sweep failed", "err", sweepErr)
	} else if reclaimed > 0 {
		logger.Info("reclaimed orphaned issues", "count", reclaimed)
	}

	stopSignals := loop.HandleSignals(pctx)
	defer stopSignals()

	l := &loop.Loop{
		Tracker:  tr,
		Executor: exec,
		Source:   source,
		Process:  pctx,
		Cooldown: cfg.CooldownDuration(),
		Logger:   logger,
		Output:   feedback,
	}

	sessionLimit := limit
	if sessionLimit == 0 {
		sessionLimit = cfg.Loop.MaxSessions
	}

	return l.Run(ctx, loop.Options{
		Once:    once,
		Limit:   sessionLimit,
		DryRun:  dryRun,
		IssueID: issueID,
	})
}

func buildPlatform(ctx context.Context, cfg *config.Config) (platform.Platform, error) {
	switch cfg.Platform {
	case "cli":
		return ghcli.New(), nil
	case "token":
		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("GITHUB_TOKEN is required for platform: token")
		}
		return ghapi.New(ctx, token), nil
	default:
		return nil, fmt.Errorf("platform %q is not yet bound to a concrete implementation", cfg.Platform)
	}
}

// providerBinaries maps the provider names this module knows about to the
// CLI binary clirunner shells out to. Providers not in this table are
// treated as the literal binary name, so an operator can point at any CLI
// on PATH.
var providerBinaries = map[string]struct {
	binary string
	args   []string
}{
	"claude": {binary: "claude", args: []string{"-p", "--dangerously-skip-permissions"}},
	"codex":  {binary: "codex", args: []string{"exec", "--dangerously-bypass-approvals-and-sandbox"}},
	"gemini": {binary: "gemini", args: []string{"-p"}},
}

func defaultAgentFactory(provider string) (agent.Agent, error) {
	if provider == "" {
		return nil, fmt.Errorf("empty provider name")
	}
	if spec, ok := providerBinaries[provider]; ok {
		return clirunner.New(provider, spec.binary, spec.args, false), nil
	}
	return clirunner.New(provider, provider, nil, false), nil
}
