package main

import (
	"os"

	"github.com/matsen/citetrack/internal/config"
	"github.com/matsen/citetrack/internal/format"
	"github.com/spf13/cobra"
)

var (
	initJobID string
	initStyle string
)

func init() {
	initCmd.Flags().StringVar(&initJobID, "job", "", "Job identifier (required)")
	initCmd.Flags().StringVar(&initStyle, "style", "author-date", "Citation style: author-date (apa) or numeric")
	initCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a citation workspace for a job",
	Long: `Initialize a citation workspace in the current directory.

Creates:
  .citetrack/
  ├── config.yaml     # Job id, style, thresholds
  └── citations.db    # SQLite citation store`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}
	if envRoot := os.Getenv(config.RootEnv); envRoot != "" {
		root = envRoot
	}

	if config.IsWorkspace(root) {
		exitWithError(ExitError, "directory already contains a citetrack workspace")
	}

	if _, err := format.ParseStyle(initStyle); err != nil {
		exitWithError(ExitRejected, "%v", err)
	}

	if err := os.MkdirAll(config.WorkspacePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating %s directory: %v", config.CitetrackDir, err)
	}

	cfg := config.Default(initJobID)
	cfg.Style = initStyle
	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("Initialized citation workspace for job %s in %s\n", initJobID, root)
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: root, JobID: initJobID})
	}

	return nil
}
