package main

import (
	"os"

	"github.com/matsen/citetrack/internal/integrity"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <document>",
	Short: "Check a document's citation markers against the store",
	Long: `Cross-check the numeric citation markers in a document against the
job's citation store.

Reports markers with no stored citation, validated citations never cited
in the document, per-citation marker density, and over-reliance on a
single source. Exits non-zero when violations are found.

Examples:
  ct check draft.md`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStore(root, cfg)

	doc, err := os.ReadFile(args[0])
	if err != nil {
		exitWithError(ExitError, "reading document: %v", err)
	}

	checker := integrity.NewChecker(cfg.OverRelianceFraction)
	report := checker.Check(string(doc), s)

	if humanOutput {
		outputHuman("%d markers, %d distinct citations cited, %d stored\n",
			report.TotalMarkers, report.DistinctCited, report.StoredCitations)
		if len(report.OrphanedMarkers) > 0 {
			outputHuman("orphaned markers: %v\n", report.OrphanedMarkers)
		}
		if len(report.UncitedEntries) > 0 {
			outputHuman("uncited entries: %v\n", report.UncitedEntries)
		}
		for _, or := range report.OverReliance {
			outputHuman("over-reliance: citation [%d] carries %.0f%% of markers\n",
				or.Number, or.Fraction*100)
		}
		if report.Clean {
			outputHuman("no integrity violations\n")
		}
	} else {
		outputJSON(report)
	}

	if !report.Clean {
		os.Exit(ExitIntegrityError)
	}
	return nil
}
