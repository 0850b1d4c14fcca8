package main

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-validate every stored citation against its registry",
	Long: `Re-run identifier validation for every citation in the store.

Catches identifiers that stopped resolving since they were added. The
store itself is not modified; failures are reported for review.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStore(root, cfg)
	mgr := buildManager(cfg, s)

	report, err := mgr.ValidateAll(cmd.Context())
	if err != nil {
		exitWithError(ExitError, "re-validating citations: %v", err)
	}

	if humanOutput {
		outputHuman("%d citations: %d passed, %d failed, %d skipped\n",
			report.Total, report.Passed, report.Failed, report.Skipped)
		for _, issue := range report.Issues {
			outputHuman("  %s (%s): %s\n", issue.CitationID, issue.Identifier, issue.Reason)
		}
	} else {
		outputJSON(report)
	}

	if report.Failed > 0 {
		os.Exit(ExitRejected)
	}
	return nil
}
