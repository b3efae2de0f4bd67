package main

import (
	"fmt"
	"strings"

	"github.com/mschladt/rtk/internal/graph"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a paper from the local graph",
	Long: `Get a paper by its graph identifier, with its authors and citation
edge counts.

Example:
  rtk get 649def34f8be52c8b66281af98ae884c09aef38b`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// PaperDetail is the response for the get command.
type PaperDetail struct {
	Paper    graph.Paper    `json:"paper"`
	Authors  []graph.Author `json:"authors,omitempty"`
	OutEdges int            `json:"out_edges"`
	InEdges  int            `json:"in_edges"`
}

func runGet(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	store := mustOpenStore(repoRoot)
	defer store.Close()

	id := args[0]
	paper, err := store.GetPaper(id)
	if err != nil {
		exitWithError(ExitError, "getting paper: %v", err)
	}
	if paper == nil {
		exitWithError(ExitError, "paper not found: %s", id)
	}

	authors, err := store.AuthorsOf(id)
	if err != nil {
		exitWithError(ExitError, "getting authors: %v", err)
	}
	out, err := store.OutNeighbors(id)
	if err != nil {
		exitWithError(ExitError, "getting references: %v", err)
	}
	in, err := store.InNeighbors(id)
	if err != nil {
		exitWithError(ExitError, "getting citations: %v", err)
	}

	detail := PaperDetail{Paper: *paper, Authors: authors, OutEdges: len(out), InEdges: len(in)}
	if humanOutput {
		printPaperDetail(detail)
	} else {
		outputJSON(detail)
	}
	return nil
}

func printPaperDetail(d PaperDetail) {
	fmt.Println(d.Paper.ID)
	fmt.Println(strings.Repeat("=", len(d.Paper.ID)))
	if d.Paper.Stub {
		fmt.Println("(stub: discovered through a citation, not yet fetched)")
	}
	if d.Paper.Title != "" {
		fmt.Printf("Title:   %s\n", d.Paper.Title)
	}
	if len(d.Authors) > 0 {
		names := make([]string, len(d.Authors))
		for i, a := range d.Authors {
			names[i] = a.Name
		}
		fmt.Printf("Authors: %s\n", strings.Join(names, ", "))
	}
	if d.Paper.Venue != "" {
		fmt.Printf("Venue:   %s\n", d.Paper.Venue)
	}
	if d.Paper.Year != 0 {
		fmt.Printf("Year:    %d\n", d.Paper.Year)
	}
	fmt.Printf("Edges:   %d outgoing, %d incoming\n", d.OutEdges, d.InEdges)
	if d.Paper.CitationCount > 0 {
		fmt.Printf("Cited:   %d times on Semantic Scholar\n", d.Paper.CitationCount)
	}
}
