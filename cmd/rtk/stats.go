package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local graph statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

// StatsResult is the response for the stats command.
type StatsResult struct {
	Papers    int `json:"papers"`
	Stubs     int `json:"stubs"`
	Authors   int `json:"authors"`
	Citations int `json:"citations"`
}

func runStats(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	store := mustOpenStore(repoRoot)
	defer store.Close()

	var (
		result StatsResult
		err    error
	)
	if result.Papers, err = store.CountPapers(); err != nil {
		exitWithError(ExitError, "counting papers: %v", err)
	}
	if result.Stubs, err = store.CountStubs(); err != nil {
		exitWithError(ExitError, "counting stubs: %v", err)
	}
	if result.Authors, err = store.CountAuthors(); err != nil {
		exitWithError(ExitError, "counting authors: %v", err)
	}
	if result.Citations, err = store.CountCitations(); err != nil {
		exitWithError(ExitError, "counting citations: %v", err)
	}

	if humanOutput {
		outputHuman("papers:    %d (%d stubs)\nauthors:   %d\ncitations: %d\n",
			result.Papers, result.Stubs, result.Authors, result.Citations)
	} else {
		outputJSON(result)
	}
	return nil
}
