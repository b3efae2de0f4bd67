package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mschladt/rtk/internal/config"
	"github.com/mschladt/rtk/internal/ingest"
	"github.com/mschladt/rtk/internal/scholar"
	"github.com/spf13/cobra"
)

func init() {
	ingestCmd.Flags().IntP("depth", "d", 0, "Maximum hop distance from the seeds (default from config)")
	ingestCmd.Flags().IntP("max-nodes", "n", 0, "Hard cap on papers fetched (default from config)")
	ingestCmd.Flags().Float64("rps", 0, "Request rate limit in requests per second (default from config)")
	ingestCmd.Flags().Int("concurrency", 0, "Parallel fetches per depth level (default from config)")
	ingestCmd.Flags().Int("timeout", 0, "Run timeout in seconds, 0 for none (default from config)")
	ingestCmd.Flags().Bool("citations", false, "Also expand through citing papers")
	ingestCmd.Flags().BoolP("quiet", "q", false, "Suppress progress output on stderr")
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <seed>...",
	Short: "Expand the citation graph from seed papers",
	Long: `Fetch seed papers from Semantic Scholar and expand the local citation
graph breadth-first through their references, up to the configured depth and
node limits. Re-running over the same seeds refreshes metadata without
duplicating papers or edges.

Seeds accept Semantic Scholar IDs or prefixed external identifiers:

  rtk ingest 649def34f8be52c8b66281af98ae884c09aef38b
  rtk ingest DOI:10.1038/nature14539 ARXIV:1706.03762`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)
	applyIngestFlags(cmd, cfg)

	store := mustOpenStore(repoRoot)
	defer store.Close()

	clientOpts := []scholar.ClientOption{
		scholar.WithRateLimit(cfg.RequestsPerSecond),
	}
	if key := config.GetS2APIKey(); key != "" {
		clientOpts = append(clientOpts, scholar.WithAPIKey(key))
	}
	client := scholar.NewClient(clientOpts...)

	runner := &ingest.Runner{
		Fetch: client,
		Store: store,
		Opts: ingest.Options{
			MaxDepth:         cfg.MaxDepth,
			MaxNodes:         cfg.MaxNodes,
			Concurrency:      cfg.Concurrency,
			PerPaperLimit:    cfg.PerPaperLimit,
			IncludeCitations: cfg.IncludeCitations,
		},
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		runner.Logf = func(format string, a ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", a...)
		}
	}

	ctx := context.Background()
	if cfg.Timeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout())
		defer cancel()
	}

	report, err := runner.Run(ctx, args)
	if err != nil {
		code := ingestExitCode(err)
		if report != nil {
			// Committed work survives an aborted run; report what landed.
			printReport(report)
		}
		exitWithError(code, "ingest: %v", err)
	}

	printReport(report)
	return nil
}

// applyIngestFlags overlays command-line flags onto the repo config.
func applyIngestFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("depth") {
		cfg.MaxDepth, _ = cmd.Flags().GetInt("depth")
	}
	if cmd.Flags().Changed("max-nodes") {
		cfg.MaxNodes, _ = cmd.Flags().GetInt("max-nodes")
	}
	if cmd.Flags().Changed("rps") {
		cfg.RequestsPerSecond, _ = cmd.Flags().GetFloat64("rps")
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSeconds, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("citations") {
		cfg.IncludeCitations, _ = cmd.Flags().GetBool("citations")
	}
}

// ingestExitCode maps run failures to exit codes. Partial runs (timeout,
// failure-streak abort, store write abort) leave committed work behind and
// get their own code so callers can tell them from hard errors.
func ingestExitCode(err error) int {
	switch {
	case errors.Is(err, ingest.ErrRunTimeout),
		errors.Is(err, ingest.ErrTooManyFailures),
		errors.Is(err, ingest.ErrStoreWrite):
		return ExitPartialRun
	case scholar.IsRateLimited(err), scholar.IsTransient(err), errors.Is(err, scholar.ErrAuth):
		return ExitAPIError
	default:
		return ExitError
	}
}

func printReport(r *ingest.Report) {
	if humanOutput {
		outputHuman("%s\n", r.Summary())
		for _, f := range r.Failures {
			fmt.Fprintf(os.Stderr, "  failed %s (%s): %s\n", f.ID, f.Stage, f.Error)
		}
	} else {
		outputJSON(r)
	}
}
