package main

import (
	"errors"

	"github.com/mschladt/rtk/internal/query"
	"github.com/spf13/cobra"
)

func init() {
	hoodCmd.Flags().IntP("hops", "k", 1, "Maximum hop distance from the paper")
	hoodCmd.Flags().String("direction", "out", "Edge direction to follow: out, in, or both")
	rootCmd.AddCommand(hoodCmd)
}

var hoodCmd = &cobra.Command{
	Use:   "hood <id>",
	Short: "List the k-hop neighborhood of a paper",
	Long: `List every paper reachable from the given paper within k hops, with
its hop distance. Direction "out" follows references, "in" follows citing
papers, "both" follows either.

Example:
  rtk hood 649def34f8be52c8b66281af98ae884c09aef38b --hops 2 --direction both`,
	Args: cobra.ExactArgs(1),
	RunE: runHood,
}

// HoodResult is the response for the hood command.
type HoodResult struct {
	Start     string       `json:"start"`
	Hops      int          `json:"hops"`
	Direction string       `json:"direction"`
	Count     int          `json:"count"`
	Nodes     []query.Node `json:"nodes"`
}

func runHood(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	store := mustOpenStore(repoRoot)
	defer store.Close()

	hops, _ := cmd.Flags().GetInt("hops")
	dirFlag, _ := cmd.Flags().GetString("direction")
	dir := query.Direction(dirFlag)
	switch dir {
	case query.DirectionOut, query.DirectionIn, query.DirectionBoth:
	default:
		exitWithError(ExitError, "invalid direction %q (want out, in, or both)", dirFlag)
	}

	nodes, err := query.Neighborhood(store, args[0], hops, dir)
	if err != nil {
		if errors.Is(err, query.ErrPaperNotFound) {
			exitWithError(ExitError, "%v", err)
		}
		exitWithError(ExitError, "computing neighborhood: %v", err)
	}

	result := HoodResult{Start: args[0], Hops: hops, Direction: dirFlag, Count: len(nodes), Nodes: nodes}
	if humanOutput {
		outputHuman("%d papers within %d hops of %s (%s)\n", len(nodes), hops, args[0], dirFlag)
		for _, n := range nodes {
			title := ""
			if p, err := store.GetPaper(n.ID); err == nil && p != nil && p.Title != "" {
				title = "  " + truncateString(p.Title, ListTitleMaxLen)
			}
			outputHuman("  %d  %s%s\n", n.Distance, n.ID, title)
		}
	} else {
		outputJSON(result)
	}
	return nil
}
