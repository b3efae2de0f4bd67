package main

import (
	"strings"

	"github.com/mschladt/rtk/internal/query"
	"github.com/spf13/cobra"
)

func init() {
	cociteCmd.Flags().Int("min-shared", 2, "Minimum shared citers to link two papers")
	rootCmd.AddCommand(cociteCmd)
}

var cociteCmd = &cobra.Command{
	Use:   "cocite [a b]",
	Short: "Co-citation analysis over the local graph",
	Long: `With two paper IDs, count how many papers cite both. With no
arguments, cluster the whole graph: papers co-cited by at least --min-shared
common citers land in the same cluster.

Examples:
  rtk cocite P1 P2
  rtk cocite --min-shared 3`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return cobra.ExactArgs(2)(cmd, args)
		}
		return nil
	},
	RunE: runCocite,
}

// CoCiteResult is the response for the pairwise cocite command.
type CoCiteResult struct {
	A      string `json:"a"`
	B      string `json:"b"`
	Shared int    `json:"shared_citers"`
}

// ClusterResult is the response for the clustering cocite command.
type ClusterResult struct {
	MinShared int             `json:"min_shared"`
	Count     int             `json:"count"`
	Clusters  []query.Cluster `json:"clusters"`
}

func runCocite(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	store := mustOpenStore(repoRoot)
	defer store.Close()

	if len(args) == 2 {
		shared, err := query.CoCitations(store, args[0], args[1])
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if humanOutput {
			outputHuman("%d papers cite both %s and %s\n", shared, args[0], args[1])
		} else {
			outputJSON(CoCiteResult{A: args[0], B: args[1], Shared: shared})
		}
		return nil
	}

	minShared, _ := cmd.Flags().GetInt("min-shared")
	if minShared < 1 {
		exitWithError(ExitError, "--min-shared must be at least 1")
	}

	clusters, err := query.CoCitedClusters(store, minShared)
	if err != nil {
		exitWithError(ExitError, "clustering: %v", err)
	}

	if humanOutput {
		outputHuman("%d clusters (min shared citers: %d)\n", len(clusters), minShared)
		for i, c := range clusters {
			outputHuman("%d. %s\n", i+1, strings.Join(c.Papers, ", "))
		}
	} else {
		outputJSON(ClusterResult{MinShared: minShared, Count: len(clusters), Clusters: clusters})
	}
	return nil
}
