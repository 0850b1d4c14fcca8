package main

import (
	"io"
	"os"

	"github.com/matsen/citetrack/internal/integrity"
	"github.com/matsen/citetrack/internal/store"
	"github.com/matsen/citetrack/internal/tool"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(opCmd)
}

var opCmd = &cobra.Command{
	Use:   "op",
	Short: "Execute one JSON operation request from stdin",
	Long: `Read one JSON operation request from stdin, execute it, and write
one JSON response to stdout. This is the structured surface for agents;
the other subcommands are conveniences over the same operations.

Request shape:
  {"op": "add", "payload": {"identifier": "...", "usage": {...}}}

Operations: add, add_usage, get, validate, format, usage_report, list,
export, check. Unknown operations and unknown payload fields are
rejected.`,
	RunE: runOp,
}

func runOp(cmd *cobra.Command, args []string) error {
	root := mustFindWorkspace()
	cfg := mustLoadConfig(root)

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitWithError(ExitError, "reading request: %v", err)
	}

	req, err := tool.Decode(data)
	if err != nil {
		outputJSON(tool.Response{OK: false, Error: err.Error()})
		os.Exit(ExitRejected)
	}

	// Only add and add_usage mutate the store; they take the job's write
	// lock, everything else reads a settled snapshot.
	mutates := req.Op == tool.OpAdd || req.Op == tool.OpAddUsage
	var s *store.Store
	if mutates {
		s = mustOpenStoreForWrite(root, cfg)
	} else {
		s = mustOpenStore(root, cfg)
	}
	mgr := buildManager(cfg, s)

	dispatcher := tool.NewDispatcher(mgr, integrity.NewChecker(cfg.OverRelianceFraction))
	result, err := dispatcher.Dispatch(cmd.Context(), req)
	if err != nil {
		outputJSON(tool.Response{Op: req.Op, OK: false, Error: err.Error()})
		os.Exit(opExitCode(req.Op, err))
	}

	if mutates {
		mustCommitStore(s)
	}

	outputJSON(tool.Response{Op: req.Op, OK: true, Result: result})
	return nil
}

func opExitCode(op tool.Op, err error) int {
	if op == tool.OpAdd || op == tool.OpAddUsage {
		return addExitCode(err)
	}
	return ExitError
}
