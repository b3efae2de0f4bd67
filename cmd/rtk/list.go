package main

import (
	"github.com/mschladt/rtk/internal/graph"
	"github.com/spf13/cobra"
)

const DefaultListLimit = 50

func init() {
	listCmd.Flags().IntP("limit", "l", DefaultListLimit, "Maximum papers to list (0 for all)")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List papers in the local graph",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// ListResult is the response for the list command.
type ListResult struct {
	Count  int           `json:"count"`
	Papers []graph.Paper `json:"papers"`
}

func runList(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	store := mustOpenStore(repoRoot)
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	papers, err := store.ListPapers(limit)
	if err != nil {
		exitWithError(ExitError, "listing papers: %v", err)
	}

	if humanOutput {
		for _, p := range papers {
			marker := " "
			if p.Stub {
				marker = "*"
			}
			title := p.Title
			if title == "" {
				title = "(no title)"
			}
			outputHuman("%s %s  %s\n", marker, p.ID, truncateString(title, ListTitleMaxLen))
		}
		outputHuman("%d papers (* = stub)\n", len(papers))
	} else {
		outputJSON(ListResult{Count: len(papers), Papers: papers})
	}
	return nil
}
