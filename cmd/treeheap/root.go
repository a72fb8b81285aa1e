package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	arenaBytes int
	verbose    bool
	noColor    bool
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "treeheap",
	Short: "Replay and inspect allocator workload scripts",
	Long: `treeheap runs .script allocator traces against a best-fit heap backed
by a red-black tree of free blocks. It can verify every request and the heap's
internal invariants, report peak data-structure load, time request ranges, and
render the free tree and heap map.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().
		IntVar(&arenaBytes, "arena", 1<<22, "Arena size in bytes for the heap under test")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output the heap map as JSON")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}
