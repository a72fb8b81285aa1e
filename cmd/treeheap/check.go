package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treealloc/treealloc/heap"
	"github.com/treealloc/treealloc/script"
)

var checkEvery int

func init() {
	cmd := newCheckCmd()
	cmd.Flags().IntVar(&checkEvery, "validate-every", 1,
		"Run a full heap validation after every nth request (0 validates only at the end)")
	rootCmd.AddCommand(cmd)
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <script>...",
		Short: "Replay scripts with full verification",
		Long: `The check command replays each script against a fresh heap, verifying the
payload bytes of every block on each free and resize and validating the heap's
internal invariants as it goes.

Example:
  treeheap check trace.script
  treeheap check --validate-every 100 trace-50k.script`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args)
		},
	}
}

func runCheck(paths []string) error {
	for _, path := range paths {
		s, err := script.ParseFile(path)
		if err != nil {
			return err
		}
		printVerbose("parsed %q: %d requests, %d block ids\n", s.Name, len(s.Requests), s.IDCount)

		h := heap.New()
		if err := h.Init(make([]byte, arenaBytes)); err != nil {
			return err
		}

		runner := script.NewRunner(h, s, script.WithValidateEvery(checkEvery))
		if err := runner.Run(s); err != nil {
			return err
		}

		utilization := 100 * float64(runner.PeakBytes()) / float64(h.Size())
		fmt.Printf("%s: serviced %d requests, peak payload %d bytes (%.1f%% of arena), %d blocks leaked\n",
			s.Name, len(s.Requests), runner.PeakBytes(), utilization, runner.LiveBlocks())
	}
	return nil
}
