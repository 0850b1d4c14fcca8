package main

import (
	"github.com/matsen/citetrack/internal/citation"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all citations in the job",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStore(root, cfg)

	cits := s.All()

	if humanOutput {
		if len(cits) == 0 {
			outputHuman("No citations in job %s\n", cfg.JobID)
			return nil
		}
		outputHuman("%d citations in job %s:\n\n", len(cits), cfg.JobID)
		for _, c := range cits {
			outputHuman("  [%d] %-20s %s (%s, %d)\n", c.Number, c.ID,
				truncateString(c.Title, ListTitleMaxLen),
				formatAuthorsShort(c.Authors, 3), c.Year())
		}
	} else {
		if cits == nil {
			cits = []*citation.Citation{}
		}
		outputJSON(cits)
	}

	return nil
}
