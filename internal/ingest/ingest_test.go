package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mschladt/rtk/internal/graph"
	"github.com/mschladt/rtk/internal/graphstore"
	"github.com/mschladt/rtk/internal/scholar"
)

// fakeFetcher serves canned records and tracks per-paper fetch counts.
type fakeFetcher struct {
	mu     sync.Mutex
	papers map[string]*scholar.PaperRecord
	refs   map[string][]scholar.PaperRecord
	cites  map[string][]scholar.PaperRecord
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		papers: make(map[string]*scholar.PaperRecord),
		refs:   make(map[string][]scholar.PaperRecord),
		cites:  make(map[string][]scholar.PaperRecord),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) addPaper(id string, refIDs ...string) {
	f.papers[id] = &scholar.PaperRecord{PaperID: id, Title: "Title of " + id}
	for _, rid := range refIDs {
		f.refs[id] = append(f.refs[id], scholar.PaperRecord{PaperID: rid, Title: "Title of " + rid})
	}
}

func (f *fakeFetcher) GetPaper(ctx context.Context, id string) (*scholar.PaperRecord, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	rec, ok := f.papers[id]
	if !ok {
		return nil, scholar.ErrNotFound
	}
	return rec, nil
}

func (f *fakeFetcher) AllReferences(ctx context.Context, id string, max int) ([]scholar.PaperRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[id], nil
}

func (f *fakeFetcher) AllCitations(ctx context.Context, id string, max int) ([]scholar.PaperRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cites[id], nil
}

func testGraphStore(t *testing.T) *graphstore.Store {
	t.Helper()
	store, err := graphstore.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunSeedScenario(t *testing.T) {
	// Seed P1 cites P2 and P3, depth 1: 3 paper nodes, 2 edges, no strays.
	fetch := newFakeFetcher()
	fetch.addPaper("P1", "P2", "P3")
	fetch.addPaper("P2")
	fetch.addPaper("P3")
	fetch.papers["P1"].Authors = []scholar.AuthorRecord{
		{AuthorID: "A1", Name: "First Author"},
		{AuthorID: "A2", Name: "Second Author"},
	}
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 1, MaxNodes: 10}}
	report, err := runner.Run(context.Background(), []string{"P1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Committed != 3 {
		t.Errorf("expected 3 committed, got %d (%s)", report.Committed, report.Summary())
	}
	if n, _ := store.CountPapers(); n != 3 {
		t.Errorf("expected 3 paper nodes, got %d", n)
	}
	if n, _ := store.CountCitations(); n != 2 {
		t.Errorf("expected 2 citation edges, got %d", n)
	}
	if n, _ := store.CountStubs(); n != 0 {
		t.Errorf("expected 0 stubs, got %d", n)
	}
	authors, err := store.AuthorsOf("P1")
	if err != nil {
		t.Fatal(err)
	}
	if len(authors) != 2 || authors[0].ID != "A1" || authors[1].ID != "A2" {
		t.Errorf("unexpected authors of P1: %v", authors)
	}
	for _, id := range []string{"P1", "P2", "P3"} {
		if report.States[id] != StateCommitted {
			t.Errorf("expected %s committed, got %s", id, report.States[id])
		}
	}
}

func TestRunDepthLimitIsHardStop(t *testing.T) {
	// Chain P1 -> P2 -> P3 with depth 1: P3 is never discovered because
	// the last level is not expanded.
	fetch := newFakeFetcher()
	fetch.addPaper("P1", "P2")
	fetch.addPaper("P2", "P3")
	fetch.addPaper("P3")
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 1, MaxNodes: 10}}
	report, err := runner.Run(context.Background(), []string{"P1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Visited != 2 {
		t.Errorf("expected visited 2, got %d", report.Visited)
	}
	p3, _ := store.GetPaper("P3")
	if p3 != nil {
		t.Errorf("P3 must not be in the graph at depth 1, got %+v", p3)
	}
	if fetch.calls["P3"] != 0 {
		t.Errorf("P3 must never be fetched, got %d calls", fetch.calls["P3"])
	}
}

func TestRunMaxNodesIsHardStop(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.addPaper("P1", "R1", "R2", "R3", "R4", "R5")
	for _, id := range []string{"R1", "R2", "R3", "R4", "R5"} {
		fetch.addPaper(id)
	}
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 2, MaxNodes: 3}}
	report, err := runner.Run(context.Background(), []string{"P1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Visited > 3 {
		t.Errorf("visited set exceeded max nodes: %d", report.Visited)
	}
	if report.Committed != 3 {
		t.Errorf("expected 3 committed, got %d", report.Committed)
	}
	// All edges are still recorded; targets beyond the cap stay stubs.
	if n, _ := store.CountCitations(); n != 5 {
		t.Errorf("expected 5 edges, got %d", n)
	}
	if n, _ := store.CountStubs(); n != 3 {
		t.Errorf("expected 3 stub targets, got %d", n)
	}
}

func TestRunCycleFetchedOnce(t *testing.T) {
	// P1 and P2 cite each other. The visited set must prevent refetching
	// even with depth to spare.
	fetch := newFakeFetcher()
	fetch.addPaper("P1", "P2")
	fetch.addPaper("P2", "P1")
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 5, MaxNodes: 10}}
	report, err := runner.Run(context.Background(), []string{"P1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, id := range []string{"P1", "P2"} {
		if fetch.calls[id] != 1 {
			t.Errorf("expected %s fetched once, got %d", id, fetch.calls[id])
		}
	}
	if report.Committed != 2 {
		t.Errorf("expected 2 committed, got %d", report.Committed)
	}
	if n, _ := store.CountCitations(); n != 2 {
		t.Errorf("expected both directions of the cycle, got %d edges", n)
	}
}

func TestRunIncludeCitations(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.addPaper("P1")
	fetch.addPaper("C1")
	fetch.cites["P1"] = []scholar.PaperRecord{{PaperID: "C1", Title: "Citing paper"}}
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store,
		Opts: Options{MaxDepth: 1, MaxNodes: 10, IncludeCitations: true}}
	if _, err := runner.Run(context.Background(), []string{"P1"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	in, err := store.InNeighbors("P1")
	if err != nil {
		t.Fatal(err)
	}
	if len(in) != 1 || in[0] != "C1" {
		t.Errorf("expected C1 citing P1, got %v", in)
	}
}

func TestRunUnidentifiableNeighborSkipped(t *testing.T) {
	// One reference of P1 carries no identifier under any scheme: it is
	// skipped and logged, the rest of the run proceeds.
	fetch := newFakeFetcher()
	fetch.addPaper("P1", "P2")
	fetch.addPaper("P2")
	fetch.refs["P1"] = append(fetch.refs["P1"], scholar.PaperRecord{Title: "No identifiers here"})
	store := testGraphStore(t)

	var logged []string
	runner := &Runner{Fetch: fetch, Store: store,
		Opts: Options{MaxDepth: 1, MaxNodes: 10},
		Logf: func(format string, args ...interface{}) {
			logged = append(logged, fmt.Sprintf(format, args...))
		}}
	report, err := runner.Run(context.Background(), []string{"P1"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Skipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", report.Skipped)
	}
	if report.Committed != 2 {
		t.Errorf("expected 2 committed, got %d", report.Committed)
	}
	if n, _ := store.CountCitations(); n != 1 {
		t.Errorf("expected 1 edge, got %d", n)
	}
	if len(logged) == 0 {
		t.Error("expected the skip to be logged")
	}
}

func TestRunUnidentifiableSeedFailsNode(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.papers["P5"] = &scholar.PaperRecord{Title: "Missing identifier"}
	fetch.addPaper("P1")
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 0, MaxNodes: 10}}
	report, err := runner.Run(context.Background(), []string{"P5", "P1"})
	if err != nil {
		t.Fatalf("run must survive an unidentifiable record: %v", err)
	}

	if report.Failed != 1 || report.Committed != 1 {
		t.Errorf("expected 1 failed + 1 committed, got %+v", report)
	}
	if report.States["P5"] != StateFailed {
		t.Errorf("expected P5 failed, got %s", report.States["P5"])
	}
	if len(report.Failures) != 1 || report.Failures[0].Stage != "normalize" {
		t.Errorf("unexpected failures: %v", report.Failures)
	}
}

func TestRunNotFoundDoesNotAbort(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.addPaper("P1")
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store,
		Opts: Options{MaxDepth: 0, MaxNodes: 10, MaxConsecutiveFailures: 1}}
	report, err := runner.Run(context.Background(), []string{"M1", "M2", "M3", "P1"})
	if err != nil {
		t.Fatalf("404s must not abort the run: %v", err)
	}
	if report.Committed != 1 || report.Failed != 3 {
		t.Errorf("expected 1 committed + 3 failed, got %s", report.Summary())
	}
}

func TestRunConsecutiveTransientFailuresAbort(t *testing.T) {
	fetch := newFakeFetcher()
	for _, id := range []string{"P1", "P2", "P3", "P4"} {
		fetch.errs[id] = fmt.Errorf("%w: 5 attempts", scholar.ErrTransient)
	}
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store,
		Opts: Options{MaxDepth: 0, MaxNodes: 10, MaxConsecutiveFailures: 2, Concurrency: 1}}
	_, err := runner.Run(context.Background(), []string{"P1", "P2", "P3", "P4"})
	if !errors.Is(err, ErrTooManyFailures) {
		t.Errorf("expected ErrTooManyFailures, got %v", err)
	}
}

func TestRunTransientStreakResetByCommit(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.errs["B1"] = fmt.Errorf("%w: down", scholar.ErrTransient)
	fetch.errs["B2"] = fmt.Errorf("%w: down", scholar.ErrTransient)
	fetch.addPaper("G1")
	fetch.errs["B3"] = fmt.Errorf("%w: down", scholar.ErrTransient)
	fetch.errs["B4"] = fmt.Errorf("%w: down", scholar.ErrTransient)
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store,
		Opts: Options{MaxDepth: 0, MaxNodes: 10, MaxConsecutiveFailures: 2, Concurrency: 1}}
	report, err := runner.Run(context.Background(), []string{"B1", "B2", "G1", "B3", "B4"})
	if err != nil {
		t.Fatalf("a successful commit must reset the failure streak: %v", err)
	}
	if report.Committed != 1 || report.Failed != 4 {
		t.Errorf("unexpected report: %s", report.Summary())
	}
}

// flakyStore fails a configurable number of paper upserts, then recovers.
type flakyStore struct {
	*graphstore.Store
	failures int
}

func (s *flakyStore) UpsertPaper(p graph.Paper) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}
	return s.Store.UpsertPaper(p)
}

func TestRunStoreWriteRetriedOnce(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.addPaper("P1")
	store := &flakyStore{Store: testGraphStore(t), failures: 1}

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 0, MaxNodes: 10}}
	report, err := runner.Run(context.Background(), []string{"P1"})
	if err != nil {
		t.Fatalf("single write failure must be retried: %v", err)
	}
	if report.Committed != 1 {
		t.Errorf("expected 1 committed, got %d", report.Committed)
	}
}

func TestRunStoreWriteFailureIsFatal(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.addPaper("P1")
	store := &flakyStore{Store: testGraphStore(t), failures: 2}

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 0, MaxNodes: 10}}
	_, err := runner.Run(context.Background(), []string{"P1"})
	if !errors.Is(err, ErrStoreWrite) {
		t.Errorf("expected ErrStoreWrite, got %v", err)
	}
}

func TestRunReingestionIdempotent(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.addPaper("P1", "P2", "P3")
	fetch.addPaper("P2")
	fetch.addPaper("P3")
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 1, MaxNodes: 10}}
	if _, err := runner.Run(context.Background(), []string{"P1"}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := runner.Run(context.Background(), []string{"P1"}); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if n, _ := store.CountPapers(); n != 3 {
		t.Errorf("re-ingestion duplicated nodes: %d", n)
	}
	if n, _ := store.CountCitations(); n != 2 {
		t.Errorf("re-ingestion duplicated edges: %d", n)
	}
	if n, _ := store.CountAuthors(); n != 0 {
		t.Errorf("unexpected authors: %d", n)
	}
}

func TestRunTimeout(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.addPaper("P1")
	store := testGraphStore(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 1, MaxNodes: 10}}
	report, err := runner.Run(ctx, []string{"P1"})
	if !errors.Is(err, ErrRunTimeout) {
		t.Fatalf("expected ErrRunTimeout, got %v", err)
	}
	if report == nil || !report.TimedOut {
		t.Error("expected the partial report to mark the timeout")
	}
}

func TestRunSeedsDeduplicated(t *testing.T) {
	fetch := newFakeFetcher()
	fetch.addPaper("P1")
	store := testGraphStore(t)

	runner := &Runner{Fetch: fetch, Store: store, Opts: Options{MaxDepth: 0, MaxNodes: 10}}
	report, err := runner.Run(context.Background(), []string{"P1", "P1", " P1 "})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Seeds) != 1 || fetch.calls["P1"] != 1 {
		t.Errorf("duplicate seeds must collapse: seeds=%v calls=%d", report.Seeds, fetch.calls["P1"])
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := (Options{MaxDepth: -1, MaxNodes: 10}).Validate(); !errors.Is(err, ErrMaxDepthRequired) {
		t.Errorf("expected ErrMaxDepthRequired, got %v", err)
	}
	if err := (Options{MaxDepth: 1}).Validate(); !errors.Is(err, ErrMaxNodesRequired) {
		t.Errorf("expected ErrMaxNodesRequired, got %v", err)
	}
	if err := (Options{MaxDepth: 0, MaxNodes: 1}).Validate(); err != nil {
		t.Errorf("expected valid options, got %v", err)
	}
}

func TestRunNoSeeds(t *testing.T) {
	runner := &Runner{Fetch: newFakeFetcher(), Store: testGraphStore(t),
		Opts: Options{MaxDepth: 1, MaxNodes: 10}}
	if _, err := runner.Run(context.Background(), nil); !errors.Is(err, ErrNoSeeds) {
		t.Errorf("expected ErrNoSeeds, got %v", err)
	}
}
