package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(authorCmd)
}

var authorCmd = &cobra.Command{
	Use:   "author <id>",
	Short: "List papers by an author in the local graph",
	Long: `List the papers in the local graph written by the given author.

Example:
  rtk author 1741101`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthor,
}

// AuthorResult is the response for the author command.
type AuthorResult struct {
	AuthorID string   `json:"author_id"`
	Count    int      `json:"count"`
	Papers   []string `json:"papers"`
}

func runAuthor(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	store := mustOpenStore(repoRoot)
	defer store.Close()

	ids, err := store.PapersBy(args[0])
	if err != nil {
		exitWithError(ExitError, "listing papers: %v", err)
	}
	if len(ids) == 0 {
		exitWithError(ExitError, "no papers found for author %s", args[0])
	}

	if humanOutput {
		for _, id := range ids {
			title := ""
			if p, err := store.GetPaper(id); err == nil && p != nil && p.Title != "" {
				title = "  " + truncateString(p.Title, ListTitleMaxLen)
			}
			outputHuman("%s%s\n", id, title)
		}
	} else {
		outputJSON(AuthorResult{AuthorID: args[0], Count: len(ids), Papers: ids})
	}
	return nil
}
