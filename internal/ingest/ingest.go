// Package ingest drives citation-graph expansion: breadth-first traversal
// from seed papers, bounded fetch concurrency per depth level, and
// serialized idempotent commits through the graph store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mschladt/rtk/internal/canon"
	"github.com/mschladt/rtk/internal/graph"
	"github.com/mschladt/rtk/internal/scholar"
)

// Fetcher is the slice of the metadata client the orchestrator needs.
type Fetcher interface {
	GetPaper(ctx context.Context, id string) (*scholar.PaperRecord, error)
	AllReferences(ctx context.Context, id string, max int) ([]scholar.PaperRecord, error)
	AllCitations(ctx context.Context, id string, max int) ([]scholar.PaperRecord, error)
}

// Store is the write surface of the graph store adapter.
type Store interface {
	UpsertPaper(p graph.Paper) error
	UpsertAuthor(a graph.Author) error
	LinkAuthored(paperID, authorID string, position int) error
	UpsertCitation(c graph.Citation) error
}

// State tracks a paper node through the ingestion pipeline.
type State string

const (
	StateQueued     State = "queued"
	StateFetching   State = "fetching"
	StateNormalized State = "normalized"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

// Run-level errors.
var (
	ErrNoSeeds          = errors.New("at least one seed paper is required")
	ErrMaxDepthRequired = errors.New("max depth must be set (>= 0)")
	ErrMaxNodesRequired = errors.New("max nodes must be set (> 0)")
	ErrStoreWrite       = errors.New("graph store write failed")
	ErrRunTimeout       = errors.New("ingestion run timed out")
	ErrTooManyFailures  = errors.New("aborting run: too many consecutive fetch failures")
)

// Options bound an ingestion run. MaxDepth and MaxNodes are both required:
// citation graphs are effectively unbounded, so unbounded expansion is
// disallowed.
type Options struct {
	MaxDepth int // hard stop on graph distance from any seed
	MaxNodes int // hard stop on the visited-set size

	Concurrency            int  // fetch workers per depth level
	PerPaperLimit          int  // max references/citations pulled per paper
	MaxConsecutiveFailures int  // transient failures in a row before aborting
	IncludeCitations       bool // also expand through citing papers
}

// Validate checks the required hard limits.
func (o Options) Validate() error {
	if o.MaxDepth < 0 {
		return ErrMaxDepthRequired
	}
	if o.MaxNodes <= 0 {
		return ErrMaxNodesRequired
	}
	return nil
}

// Defaults for optional knobs.
const (
	DefaultConcurrency            = 4
	DefaultPerPaperLimit          = 100
	DefaultMaxConsecutiveFailures = 5
)

// NodeFailure records a per-node error that did not abort the run.
type NodeFailure struct {
	ID    string `json:"id"`
	Stage string `json:"stage"` // fetch, normalize, expand
	Error string `json:"error"`
}

// Report summarizes an ingestion run. A run that aborts early still returns
// its report: everything committed before the abort stays committed.
type Report struct {
	Seeds        []string         `json:"seeds"`
	Committed    int              `json:"committed"`
	Failed       int              `json:"failed"`
	Skipped      int              `json:"skipped"` // neighbor records with no usable identifier
	Visited      int              `json:"visited"`
	DepthReached int              `json:"depth_reached"`
	TimedOut     bool             `json:"timed_out,omitempty"`
	Failures     []NodeFailure    `json:"failures,omitempty"`
	States       map[string]State `json:"-"`
	Duration     time.Duration    `json:"-"`
	DurationSecs float64          `json:"duration_seconds"`
}

// Summary returns a one-line human-readable run summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("committed %d, failed %d, skipped %d (visited %d, depth %d, %.1fs)",
		r.Committed, r.Failed, r.Skipped, r.Visited, r.DepthReached, r.Duration.Seconds())
}

// Runner wires a fetcher and a store into an ingestion pipeline.
// Logf, when set, receives progress and skip diagnostics.
type Runner struct {
	Fetch Fetcher
	Store Store
	Opts  Options
	Logf  func(format string, args ...interface{})
}

// node is a frontier entry. Discovered nodes keep the identifier they were
// discovered (and stubbed) under, so a fetched record that normalizes to a
// different identifier is still committed against the existing stub.
type node struct {
	id   string
	seed bool
}

type fetchResult struct {
	rec   *scholar.PaperRecord
	refs  []scholar.PaperRecord
	cites []scholar.PaperRecord
	err   error
	stage string
}

// Run expands the citation graph breadth-first from the seeds. Each depth
// level is fetched with a bounded worker pool, then committed serially
// before the frontier advances, so an interrupted run leaves a consistently
// committed partial graph.
//
// Per-node fetch and normalize failures are recorded and skipped; more than
// Opts.MaxConsecutiveFailures transient failures in a row abort the run.
// A store write failure is retried once, then aborts the run. Context
// cancellation stops new fetches but lets the current level's commits
// finish.
func (r *Runner) Run(ctx context.Context, seeds []string) (*Report, error) {
	if err := r.Opts.Validate(); err != nil {
		return nil, err
	}
	opts := r.Opts
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.PerPaperLimit <= 0 {
		opts.PerPaperLimit = DefaultPerPaperLimit
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}

	start := time.Now()
	report := &Report{States: make(map[string]State)}
	finish := func(err error) (*Report, error) {
		report.Duration = time.Since(start)
		report.DurationSecs = report.Duration.Seconds()
		return report, err
	}

	// The visited set only grows within a run; membership is checked
	// before enqueueing so each node is fetched at most once.
	visited := make(map[string]bool)
	var frontier []node
	for _, s := range seeds {
		id := scholar.ParsePaperID(s).String()
		if id == "" || visited[id] {
			continue
		}
		if len(visited) >= opts.MaxNodes {
			break
		}
		visited[id] = true
		report.States[id] = StateQueued
		report.Seeds = append(report.Seeds, id)
		frontier = append(frontier, node{id: id, seed: true})
	}
	if len(frontier) == 0 {
		return finish(ErrNoSeeds)
	}

	consecutive := 0
	for depth := 0; depth <= opts.MaxDepth && len(frontier) > 0; depth++ {
		report.DepthReached = depth
		expand := depth < opts.MaxDepth

		for _, n := range frontier {
			report.States[n.id] = StateFetching
		}
		results := r.fetchLevel(ctx, frontier, expand, opts)

		var next []node
		for i, res := range results {
			n := frontier[i]

			if res.err != nil {
				report.States[n.id] = StateFailed
				report.Failed++
				report.Failures = append(report.Failures, NodeFailure{ID: n.id, Stage: res.stage, Error: res.err.Error()})
				r.logf("skipping %s: %s failed: %v", n.id, res.stage, res.err)

				// Isolated bad data (404, malformed payload) doesn't
				// signal an outage; anything else might.
				if !scholar.IsNotFound(res.err) && !scholar.IsSchema(res.err) {
					consecutive++
					if consecutive > opts.MaxConsecutiveFailures && ctx.Err() == nil {
						report.Visited = len(visited)
						return finish(fmt.Errorf("%w (%d in a row)", ErrTooManyFailures, consecutive))
					}
				}
				continue
			}
			consecutive = 0

			paper, authors, err := canon.Normalize(*res.rec)
			if err != nil {
				report.States[n.id] = StateFailed
				report.Failed++
				report.Failures = append(report.Failures, NodeFailure{ID: n.id, Stage: "normalize", Error: err.Error()})
				r.logf("skipping %s: %v", n.id, err)
				continue
			}
			report.States[n.id] = StateNormalized

			// A discovered node was stubbed under the identifier it was
			// found by; keep that key so the stub is cleared rather than
			// duplicated. Seeds take the canonical identifier.
			if !n.seed && paper.ID != n.id {
				paper.ID = n.id
			}

			if err := r.commitPaper(paper, authors); err != nil {
				report.Visited = len(visited)
				return finish(err)
			}
			report.States[n.id] = StateCommitted
			report.Committed++

			enqueue := func(id string) {
				if visited[id] || len(visited) >= opts.MaxNodes {
					return
				}
				visited[id] = true
				report.States[id] = StateQueued
				next = append(next, node{id: id})
			}

			for _, ref := range res.refs {
				target := canon.StableID(ref)
				if target == "" {
					report.Skipped++
					r.logf("skipping unidentifiable reference of %s (title: %q)", paper.ID, ref.Title)
					continue
				}
				if target == paper.ID {
					continue
				}
				if err := r.commitEdge(graph.Citation{SourceID: paper.ID, TargetID: target}); err != nil {
					report.Visited = len(visited)
					return finish(err)
				}
				if expand {
					enqueue(target)
				}
			}

			for _, cit := range res.cites {
				source := canon.StableID(cit)
				if source == "" {
					report.Skipped++
					r.logf("skipping unidentifiable citation of %s (title: %q)", paper.ID, cit.Title)
					continue
				}
				if source == paper.ID {
					continue
				}
				if err := r.commitEdge(graph.Citation{SourceID: source, TargetID: paper.ID}); err != nil {
					report.Visited = len(visited)
					return finish(err)
				}
				if expand {
					enqueue(source)
				}
			}
		}

		if ctx.Err() != nil {
			report.Visited = len(visited)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				report.TimedOut = true
				return finish(fmt.Errorf("%w after %s", ErrRunTimeout, time.Since(start).Round(time.Millisecond)))
			}
			return finish(ctx.Err())
		}
		frontier = next
	}

	report.Visited = len(visited)
	return finish(nil)
}

// fetchLevel fetches one depth level with a bounded worker pool. Commits
// never happen here; the caller serializes all writes.
func (r *Runner) fetchLevel(ctx context.Context, frontier []node, expand bool, opts Options) []fetchResult {
	results := make([]fetchResult, len(frontier))
	var wg sync.WaitGroup
	sem := make(chan struct{}, opts.Concurrency)

	for i, n := range frontier {
		wg.Add(1)
		go func(idx int, pid string) {
			defer wg.Done()
			sem <- struct{}{}        // acquire semaphore
			defer func() { <-sem }() // release semaphore

			// A cancelled run stops issuing new fetches.
			if ctx.Err() != nil {
				results[idx] = fetchResult{err: ctx.Err(), stage: "fetch"}
				return
			}

			rec, err := r.Fetch.GetPaper(ctx, pid)
			if err != nil {
				results[idx] = fetchResult{err: err, stage: "fetch"}
				return
			}
			results[idx].rec = rec

			if !expand {
				return
			}
			refs, err := r.Fetch.AllReferences(ctx, pid, opts.PerPaperLimit)
			if err != nil {
				results[idx] = fetchResult{err: err, stage: "expand"}
				return
			}
			results[idx].refs = refs

			if opts.IncludeCitations {
				cites, err := r.Fetch.AllCitations(ctx, pid, opts.PerPaperLimit)
				if err != nil {
					results[idx] = fetchResult{err: err, stage: "expand"}
					return
				}
				results[idx].cites = cites
			}
		}(i, n.id)
	}

	wg.Wait()
	return results
}

// commitPaper writes a paper, its authors, and the AUTHORED links.
func (r *Runner) commitPaper(p graph.Paper, authors []graph.Author) error {
	p.FetchedAt = time.Now().UTC().Format(time.RFC3339)
	if err := r.write(func() error { return r.Store.UpsertPaper(p) }); err != nil {
		return err
	}
	for i, a := range authors {
		if err := r.write(func() error { return r.Store.UpsertAuthor(a) }); err != nil {
			return err
		}
		pos := i
		aid := a.ID
		if err := r.write(func() error { return r.Store.LinkAuthored(p.ID, aid, pos) }); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) commitEdge(c graph.Citation) error {
	return r.write(func() error { return r.Store.UpsertCitation(c) })
}

// write applies a store operation, retrying once. A second failure is
// run-fatal: swallowing it would risk an inconsistent graph.
func (r *Runner) write(op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	r.logf("store write failed, retrying once: %v", err)
	if err = op(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}
