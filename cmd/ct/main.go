// Package main provides the ct CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/matsen/citetrack/internal/config"
	"github.com/matsen/citetrack/internal/crossref"
	"github.com/matsen/citetrack/internal/dedup"
	"github.com/matsen/citetrack/internal/manager"
	"github.com/matsen/citetrack/internal/pubmed"
	"github.com/matsen/citetrack/internal/store"
	"github.com/matsen/citetrack/internal/urlcheck"
	"github.com/matsen/citetrack/internal/validate"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ct",
	Short: "Agent-first citation tracker",
	Long: `ct tracks citations for one writing job: it validates identifiers
against their registries, deduplicates entries, gates every addition on a
substantive usage context, and keeps citation numbers stable.

All commands output JSON by default for easy integration with AI agents
and other tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// mustFindWorkspace locates the workspace root, exiting with a config error
// if the current directory is not inside one.
func mustFindWorkspace() string {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	root, err := config.FindWorkspace(cwd)
	if err != nil {
		exitWithError(ExitConfigError, "%v (run 'ct init' first)", err)
	}
	return root
}

// mustLoadConfig loads the workspace config, exits on error.
func mustLoadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// mustOpenStore loads the job's citation store read-only, exits on error.
func mustOpenStore(root string, cfg *config.Config) *store.Store {
	s, err := store.Load(config.DBPath(root), cfg.JobID)
	if err != nil {
		exitWithError(ExitError, "opening citation store: %v", err)
	}
	return s
}

// mustOpenStoreForWrite opens the store holding the job database's write
// lock, so concurrent invocations adding to the same job serialize instead
// of overwriting each other. Commit (or process exit) releases it.
func mustOpenStoreForWrite(root string, cfg *config.Config) *store.Store {
	s, err := store.Open(config.DBPath(root), cfg.JobID)
	if err != nil {
		exitWithError(ExitError, "opening citation store: %v", err)
	}
	return s
}

// mustCommitStore persists the store and releases the write lock, exits on
// error.
func mustCommitStore(s *store.Store) {
	if err := s.Commit(); err != nil {
		exitWithError(ExitError, "saving citation store: %v", err)
	}
}

// buildManager wires the validation runner and duplicate detector for a job.
func buildManager(cfg *config.Config, s *store.Store) *manager.Manager {
	cache := validate.NewCache(cfg.CacheTTL.Std())
	retry := validate.DefaultRetry
	if cfg.RetryAttempts > 0 {
		retry.Attempts = cfg.RetryAttempts
	}
	runner := validate.NewRunner(cfg.JobID, cache, retry,
		crossref.NewClient(),
		pubmed.NewClient(),
		urlcheck.NewChecker(),
	)

	opts := []manager.Option{
		manager.WithStyle(cfg.ParsedStyle()),
		manager.WithDetector(dedup.NewDetector(cfg.TitleThreshold, cfg.AuthorThreshold)),
	}
	if cfg.MaxOutbound > 0 {
		opts = append(opts, manager.WithMaxOutbound(cfg.MaxOutbound))
	}
	return manager.New(s, runner, opts...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}
