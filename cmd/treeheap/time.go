package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/treealloc/treealloc/heap"
	"github.com/treealloc/treealloc/script"
)

var (
	timeStart int
	timeEnd   int
)

func init() {
	cmd := newTimeCmd()
	cmd.Flags().IntVarP(&timeStart, "start", "s", 1, "First script line of the timed range")
	cmd.Flags().IntVarP(&timeEnd, "end", "e", 0, "Last script line of the timed range (0 times to the end)")
	rootCmd.AddCommand(cmd)
}

func newTimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "time <script>",
		Short: "Time a range of script requests",
		Long: `The time command replays a script and reports how long the requests inside
the chosen line range took, with all verification disabled so the measurement
reflects the allocator alone.

Example:
  treeheap time trace-insertdelete-5k.script
  treeheap time -s 10001 -e 15000 trace-50k.script`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTime(args[0])
		},
	}
}

func runTime(path string) error {
	s, err := script.ParseFile(path)
	if err != nil {
		return err
	}

	h := heap.New()
	if err := h.Init(make([]byte, arenaBytes)); err != nil {
		return err
	}
	runner := script.NewRunner(h, s)

	var timed time.Duration
	timedOps := 0

	for i := range s.Requests {
		req := s.Requests[i]
		inRange := req.Lineno >= timeStart && (timeEnd == 0 || req.Lineno <= timeEnd)

		start := time.Now()
		err := runner.Step(req)
		if inRange {
			timed += time.Since(start)
			timedOps++
		}
		if err != nil {
			return err
		}
	}

	if timedOps == 0 {
		fmt.Printf("%s: no requests in range\n", s.Name)
		return nil
	}
	fmt.Printf("%s: %d requests in range took %s (%.2f µs/request)\n",
		s.Name, timedOps, timed, float64(timed.Microseconds())/float64(timedOps))
	return nil
}
