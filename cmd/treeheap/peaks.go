package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treealloc/treealloc/heap"
	"github.com/treealloc/treealloc/script"
)

func init() {
	rootCmd.AddCommand(newPeaksCmd())
}

func newPeaksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peaks <script>",
		Short: "Show the free tree at its largest",
		Long: `The peaks command replays a script and renders the free tree at the moment
it held the most nodes, then again after the final request. Watching the tree
at peak load is the quickest way to see how a workload shapes the free
structure. With --verbose each tree node's duplicate chain is listed offset by
offset and the final heap map is printed.

Example:
  treeheap peaks trace.script
  treeheap peaks --no-color trace.script`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeaks(args[0])
		},
	}
}

func runPeaks(path string) error {
	s, err := script.ParseFile(path)
	if err != nil {
		return err
	}

	// First pass finds the request index where the free-node count peaks.
	h := heap.New()
	if err := h.Init(make([]byte, arenaBytes)); err != nil {
		return err
	}
	runner := script.NewRunner(h, s)

	peak, peakIndex := 0, -1
	for i := range s.Requests {
		if err := runner.Step(s.Requests[i]); err != nil {
			return err
		}
		if free := h.TotalFreeBlocks(); free > peak {
			peak = free
			peakIndex = i
		}
	}

	styles := newRenderStyles(!noColor)
	if peakIndex < 0 {
		fmt.Printf("%s: no requests\n", s.Name)
		return nil
	}

	// Second pass replays up to the peak and renders the tree there.
	h = heap.New()
	if err := h.Init(make([]byte, arenaBytes)); err != nil {
		return err
	}
	runner = script.NewRunner(h, s)
	for i := 0; i <= peakIndex; i++ {
		if err := runner.Step(s.Requests[i]); err != nil {
			return err
		}
	}

	fmt.Printf("%s: %d free nodes at peak, after line %d\n",
		s.Name, peak, s.Requests[peakIndex].Lineno)
	fmt.Print(renderTree(h.SnapshotTree(), styles, verbose))

	for i := peakIndex + 1; i < len(s.Requests); i++ {
		if err := runner.Step(s.Requests[i]); err != nil {
			return err
		}
	}
	fmt.Printf("\nafter final request: %d free nodes\n", h.TotalFreeBlocks())
	fmt.Print(renderTree(h.SnapshotTree(), styles, verbose))

	if verbose {
		fmt.Print("\nheap map:\n")
		fmt.Print(renderHeap(h, styles))
	}
	return nil
}
