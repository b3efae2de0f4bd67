// Package main provides the rtk CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mschladt/rtk/internal/config"
	"github.com/mschladt/rtk/internal/graphstore"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rtk",
	Short: "Researcher's toolkit: a local citation graph engine",
	Long: `rtk organizes academic research as a connected graph.

It ingests papers, authors, and citation edges from Semantic Scholar into a
local graph database, expanding breadth-first from seed papers under hard
depth and node limits, and answers structural queries over the result:
neighborhoods, shortest citation paths, and co-citation clusters.

All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env if present (for S2_API_KEY)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// getStartingDirectory returns the directory to start searching for a
// repository. Checks global config nexus_path first, then the current
// working directory.
func getStartingDirectory() (string, int) {
	if root := config.GetNexusPath(); root != "" {
		return root, 0
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", outputError(ExitError, "getting current directory: %v", err)
	}
	return cwd, 0
}

// mustFindRepository finds and validates the repository, exits on error.
// Returns the repository root path.
func mustFindRepository() string {
	start, exitCode := getStartingDirectory()
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	repoRoot, err := config.FindRepository(start)
	if err != nil {
		exitWithError(ExitConfigError, "%v (run 'rtk init' first)", err)
	}
	return repoRoot
}

// mustOpenStore opens the graph database, exits on error.
// The caller is responsible for calling Close() on the returned store.
func mustOpenStore(repoRoot string) *graphstore.Store {
	store, err := graphstore.Open(config.DBPath(repoRoot))
	if err != nil {
		exitWithError(ExitError, "opening graph database: %v", err)
	}
	return store
}

// mustLoadConfig loads repository configuration, exits on error.
func mustLoadConfig(repoRoot string) *config.Config {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}
