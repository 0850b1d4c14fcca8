package main

import (
	"fmt"
	"os"

	"github.com/matsen/citetrack/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "bibtex", "Export format: bibtex, csl, or text")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the job's citations",
	Long: `Export all citations in BibTeX, CSL-JSON, or plain-text form.

Examples:
  ct export --format bibtex -o refs.bib
  ct export --format csl`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStore(root, cfg)

	var content []byte
	switch exportFormat {
	case "bibtex":
		content = []byte(export.ToBibTeXList(s.All()))
	case "csl", "csl-json":
		data, err := export.ToCSLJSON(s.All())
		if err != nil {
			exitWithError(ExitError, "encoding CSL-JSON: %v", err)
		}
		content = data
	case "text":
		content = []byte(export.ToText(s.All()))
	default:
		exitWithError(ExitRejected, "unknown export format %q (want bibtex, csl, or text)", exportFormat)
	}

	if exportOut != "" {
		if err := os.WriteFile(exportOut, content, 0644); err != nil {
			exitWithError(ExitError, "writing %s: %v", exportOut, err)
		}
		if humanOutput {
			outputHuman("Exported %d citations to %s\n", s.Len(), exportOut)
		} else {
			outputJSON(StatusResponse{Status: "exported", Path: exportOut})
		}
		return nil
	}

	fmt.Print(string(content))
	return nil
}
