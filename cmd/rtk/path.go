package main

import (
	"errors"
	"fmt"

	"github.com/mschladt/rtk/internal/query"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pathCmd)
}

var pathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Find the shortest citation path between two papers",
	Long: `Find a shortest path between two papers in the local graph, treating
citation edges as undirected connections.

Example:
  rtk path 649def34f8be52c8b66281af98ae884c09aef38b DOI:10.1038/nature14539`,
	Args: cobra.ExactArgs(2),
	RunE: runPath,
}

// PathResult is the response for the path command.
type PathResult struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Hops int      `json:"hops"`
	Path []string `json:"path"`
}

func runPath(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	store := mustOpenStore(repoRoot)
	defer store.Close()

	from, to := args[0], args[1]
	path, err := query.ShortestPath(store, from, to)
	if err != nil {
		if errors.Is(err, query.ErrPaperNotFound) || errors.Is(err, query.ErrNoPath) {
			exitWithError(ExitError, "%v", err)
		}
		exitWithError(ExitError, "finding path: %v", err)
	}

	result := PathResult{From: from, To: to, Hops: len(path) - 1, Path: path}
	if humanOutput {
		outputHuman("%d hops\n", result.Hops)
		for i, id := range path {
			if i > 0 {
				fmt.Println("  |")
			}
			fmt.Println(id)
		}
	} else {
		outputJSON(result)
	}
	return nil
}
