package main

import (
	"errors"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/spf13/cobra"
)

var (
	usageRationale string
	usageContext   string
	usageClaim     string
	usageExcerpt   string
	usageKind      string
	usagePages     string
)

func init() {
	usageCmd.Flags().StringVar(&usageRationale, "rationale", "", "Why this source is being cited (required)")
	usageCmd.Flags().StringVar(&usageContext, "context", "", "What the source contributes to the work (required)")
	usageCmd.Flags().StringVar(&usageClaim, "claim", "", "The claim this citation supports (required)")
	usageCmd.Flags().StringVar(&usageExcerpt, "excerpt", "", "Quoted passage from the source")
	usageCmd.Flags().StringVar(&usageKind, "kind", "evidence", "Usage kind: evidence, background, methodology, comparison, critique")
	usageCmd.Flags().StringVar(&usagePages, "pages", "", "Page or section locator within the source")
	usageCmd.MarkFlagRequired("rationale")
	usageCmd.MarkFlagRequired("context")
	usageCmd.MarkFlagRequired("claim")
	rootCmd.AddCommand(usageCmd)
}

var usageCmd = &cobra.Command{
	Use:   "usage <citation-id>",
	Short: "Record a further usage of an existing citation",
	Long: `Record a further usage of an already-stored citation.

The same context gate applies as for add: the rationale, context, and
claim must each be substantive.

Examples:
  ct usage Smith2023-ab --rationale "..." --context "..." --claim "..."`,
	Args: cobra.ExactArgs(1),
	RunE: runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStoreForWrite(root, cfg)
	mgr := buildManager(cfg, s)

	usage, err := mgr.AddUsage(args[0], citation.UsageDraft{
		Excerpt:         usageExcerpt,
		Rationale:       usageRationale,
		ContextValue:    usageContext,
		SupportingClaim: usageClaim,
		Locator:         usagePages,
		Kind:            citation.UsageKind(usageKind),
	})
	if err != nil {
		code := ExitError
		if errors.Is(err, citation.ErrContextInsufficient) {
			code = ExitRejected
		}
		exitWithError(code, "%v", err)
	}

	mustCommitStore(s)

	if humanOutput {
		outputHuman("Recorded usage %s for citation %s\n", usage.ID, args[0])
	} else {
		outputJSON(usage)
	}

	return nil
}
