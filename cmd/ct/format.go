package main

import (
	"github.com/spf13/cobra"
)

var formatPage string

func init() {
	formatIntextCmd.Flags().StringVar(&formatPage, "page", "", "Page locator for the marker, e.g. \"42\" or \"12-14\"")
	formatCmd.AddCommand(formatIntextCmd)
	formatCmd.AddCommand(formatBibCmd)
	rootCmd.AddCommand(formatCmd)
}

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Render in-text markers or the bibliography",
}

var formatIntextCmd = &cobra.Command{
	Use:   "intext <citation-id>...",
	Short: "Render the in-text marker for one or more citations",
	Long: `Render the in-text marker for the given citation IDs in the job's
configured style.

Examples:
  ct format intext Smith2023-ab
  ct format intext Smith2023-ab Jones2021-cd
  ct format intext Smith2023-ab --page 42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFormatIntext,
}

func runFormatIntext(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStore(root, cfg)
	mgr := buildManager(cfg, s)

	marker, err := mgr.FormatInText(args, formatPage)
	if err != nil {
		exitWithError(ExitRejected, "%v", err)
	}

	if humanOutput {
		outputHuman("%s\n", marker)
	} else {
		outputJSON(map[string]string{"formatted": marker})
	}
	return nil
}

var formatBibCmd = &cobra.Command{
	Use:   "bib",
	Short: "Render the full bibliography",
	RunE:  runFormatBib,
}

func runFormatBib(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStore(root, cfg)
	mgr := buildManager(cfg, s)

	bib := mgr.FormatBibliography()

	if humanOutput {
		outputHuman("%s", bib)
	} else {
		outputJSON(map[string]string{"formatted": bib})
	}
	return nil
}
