package main

import (
	"errors"

	"github.com/joho/godotenv"
	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/manager"
	"github.com/matsen/citetrack/internal/validate"
	"github.com/spf13/cobra"
)

var (
	addRationale string
	addContext   string
	addClaim     string
	addExcerpt   string
	addKind      string
	addPages     string
	addBy        string
)

func init() {
	// Load .env if present (for CROSSREF_MAILTO and NCBI_API_KEY)
	_ = godotenv.Load()

	addCmd.Flags().StringVar(&addRationale, "rationale", "", "Why this source is being cited (required)")
	addCmd.Flags().StringVar(&addContext, "context", "", "What the source contributes to the work (required)")
	addCmd.Flags().StringVar(&addClaim, "claim", "", "The claim this citation supports (required)")
	addCmd.Flags().StringVar(&addExcerpt, "excerpt", "", "Quoted passage from the source")
	addCmd.Flags().StringVar(&addKind, "kind", "evidence", "Usage kind: evidence, background, methodology, comparison, critique")
	addCmd.Flags().StringVar(&addPages, "pages", "", "Page or section locator within the source")
	addCmd.Flags().StringVar(&addBy, "by", "", "Agent or author adding the citation")
	addCmd.MarkFlagRequired("rationale")
	addCmd.MarkFlagRequired("context")
	addCmd.MarkFlagRequired("claim")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <identifier>",
	Short: "Validate and add a citation with its usage context",
	Long: `Validate an identifier against its registry and add the citation.

The identifier may be a DOI ("10.1038/...", "doi:...", "https://doi.org/..."),
a PMID ("PMID:19872477" or bare digits), or a URL. The usage context flags
are mandatory: an add without a substantive rationale, context, and claim
is rejected before any network call.

A duplicate of an existing entry is merged into it and reported as such;
the existing citation number is kept.

Examples:
  ct add 10.1038/nature12373 --rationale "..." --context "..." --claim "..."
  ct add PMID:19872477 --rationale "..." --context "..." --claim "..." --pages 12-14`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)
	s := mustOpenStoreForWrite(root, cfg)
	mgr := buildManager(cfg, s)

	res, err := mgr.Add(cmd.Context(), manager.AddRequest{
		Identifier: args[0],
		Usage: citation.UsageDraft{
			Excerpt:         addExcerpt,
			Rationale:       addRationale,
			ContextValue:    addContext,
			SupportingClaim: addClaim,
			Locator:         addPages,
			Kind:            citation.UsageKind(addKind),
		},
		AddedBy: addBy,
	})
	if err != nil {
		exitWithError(addExitCode(err), "%v", err)
	}

	mustCommitStore(s)

	if humanOutput {
		if res.Merged {
			outputHuman("Merged into existing citation [%d] (matched by %s)\n%s\n", res.Number, res.MergeMethod, res.Formatted)
		} else {
			outputHuman("Added citation [%d]\n%s\n", res.Number, res.Formatted)
		}
	} else {
		outputJSON(res)
	}

	return nil
}

// addExitCode distinguishes rejections the caller can fix from runtime
// failures worth retrying.
func addExitCode(err error) int {
	switch {
	case errors.Is(err, validate.ErrInvalidFormat),
		errors.Is(err, validate.ErrNotFound),
		errors.Is(err, citation.ErrContextInsufficient):
		return ExitRejected
	default:
		return ExitError
	}
}
