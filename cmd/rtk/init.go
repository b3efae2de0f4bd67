package main

import (
	"os"

	"github.com/mschladt/rtk/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize an rtk repository",
	Long: `Initialize an rtk repository in the given directory (default: current
directory). Creates the .rtk directory with a default config.json; the graph
database is created on first ingest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	} else if cwd, err := os.Getwd(); err == nil {
		root = cwd
	}

	if _, err := config.Init(root); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	if humanOutput {
		outputHuman("Initialized rtk repository in %s\n", config.RTKPath(root))
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: config.RTKPath(root)})
	}
	return nil
}
