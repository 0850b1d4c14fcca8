package main

import (
	"github.com/spf13/cobra"
)

var reportQuality bool

func init() {
	reportCmd.Flags().BoolVar(&reportQuality, "quality", false, "Report record-quality metrics instead of usages")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report how citations are used across the job",
	Long: `Summarize the job's usage records: per-citation usages, the
distribution of usage kinds, and which citations have no recorded usage.

With --quality, report validation rate, average completeness, and
identifier coverage instead.`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStore(root, cfg)
	mgr := buildManager(cfg, s)

	if reportQuality {
		qm := mgr.QualityMetrics()
		if humanOutput {
			outputHuman("%d citations, %.0f%% validated\n", qm.Total, qm.ValidationRate*100)
			outputHuman("avg completeness %.2f, DOI coverage %.0f%%, PMID coverage %.0f%%\n",
				qm.AvgCompleteness, qm.DOICoverage*100, qm.PMIDCoverage*100)
		} else {
			outputJSON(qm)
		}
		return nil
	}

	report := mgr.UsageReport()
	if humanOutput {
		outputHuman("%d usages across %d citations (%.0f%% coverage)\n\n",
			report.TotalUsages, len(report.Citations), report.Coverage*100)
		for _, cu := range report.Citations {
			outputHuman("[%d] %s (%d usages)\n", cu.Number, truncateString(cu.Title, ListTitleMaxLen), len(cu.Usages))
		}
	} else {
		outputJSON(report)
	}
	return nil
}
