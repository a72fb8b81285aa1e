package main

import (
	"fmt"
	"os"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/treealloc/treealloc/heap"
	"github.com/treealloc/treealloc/script"
)

func init() {
	rootCmd.AddCommand(newDumpCmd())
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <script>",
		Short: "Render the heap after a script runs",
		Long: `The dump command replays a script and prints the resulting heap: every block
in address order plus the free tree. With --verbose each tree node's duplicate
chain is listed offset by offset. With --json it emits a machine-readable heap
map instead.

Example:
  treeheap dump trace.script
  treeheap dump --json trace.script > heap.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0])
		},
	}
}

func runDump(path string) error {
	s, err := script.ParseFile(path)
	if err != nil {
		return err
	}

	h := heap.New()
	if err := h.Init(make([]byte, arenaBytes)); err != nil {
		return err
	}
	runner := script.NewRunner(h, s)
	if err := runner.Run(s); err != nil {
		return err
	}

	if jsonOut {
		writer := jwriter.NewWriter()
		h.PrintHeapJson(&writer)
		if err := writer.Error(); err != nil {
			return err
		}
		_, err := os.Stdout.Write(append(writer.Bytes(), '\n'))
		return err
	}

	styles := newRenderStyles(!noColor)
	fmt.Print(renderHeap(h, styles))
	fmt.Print("\nfree tree:\n")
	fmt.Print(renderTree(h.SnapshotTree(), styles, verbose))
	return nil
}
