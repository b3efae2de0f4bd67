package query

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mschladt/rtk/internal/graph"
	"github.com/mschladt/rtk/internal/graphstore"
)

// buildGraph opens a temp store and loads the given edges.
func buildGraph(t *testing.T, edges ...graph.Citation) *graphstore.Store {
	t.Helper()
	store, err := graphstore.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	for _, e := range edges {
		if err := store.UpsertCitation(e); err != nil {
			t.Fatalf("loading edge %v: %v", e, err)
		}
	}
	return store
}

func edge(src, dst string) graph.Citation {
	return graph.Citation{SourceID: src, TargetID: dst}
}

func TestNeighborhood(t *testing.T) {
	// P1 -> P2 -> P3, P1 -> P4, P5 -> P1
	store := buildGraph(t,
		edge("P1", "P2"), edge("P2", "P3"), edge("P1", "P4"), edge("P5", "P1"))

	out, err := Neighborhood(store, "P1", 2, DirectionOut)
	if err != nil {
		t.Fatalf("Neighborhood failed: %v", err)
	}
	want := []Node{{ID: "P2", Distance: 1}, {ID: "P4", Distance: 1}, {ID: "P3", Distance: 2}}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("out neighborhood = %v, want %v", out, want)
	}

	in, err := Neighborhood(store, "P1", 1, DirectionIn)
	if err != nil {
		t.Fatal(err)
	}
	if len(in) != 1 || in[0].ID != "P5" {
		t.Errorf("in neighborhood = %v, want [P5]", in)
	}

	both, err := Neighborhood(store, "P1", 1, DirectionBoth)
	if err != nil {
		t.Fatal(err)
	}
	if len(both) != 3 {
		t.Errorf("both neighborhood = %v, want 3 nodes", both)
	}
}

func TestNeighborhoodCycle(t *testing.T) {
	// A cycle must not revisit or loop forever.
	store := buildGraph(t, edge("P1", "P2"), edge("P2", "P1"))

	nodes, err := Neighborhood(store, "P1", 10, DirectionOut)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 || nodes[0].ID != "P2" {
		t.Errorf("cycle neighborhood = %v, want [P2]", nodes)
	}
}

func TestNeighborhoodUnknownStart(t *testing.T) {
	store := buildGraph(t, edge("P1", "P2"))
	_, err := Neighborhood(store, "missing", 1, DirectionOut)
	if !errors.Is(err, ErrPaperNotFound) {
		t.Errorf("expected ErrPaperNotFound, got %v", err)
	}
}

func TestShortestPath(t *testing.T) {
	// P1 -> P2 -> P3 -> P5 and the shortcut P1 -> P4, P5 -> P4.
	store := buildGraph(t,
		edge("P1", "P2"), edge("P2", "P3"), edge("P3", "P5"),
		edge("P1", "P4"), edge("P5", "P4"))

	path, err := ShortestPath(store, "P1", "P5")
	if err != nil {
		t.Fatalf("ShortestPath failed: %v", err)
	}
	// Via the undirected shortcut through P4: P1, P4, P5.
	if len(path) != 3 || path[0] != "P1" || path[2] != "P5" {
		t.Errorf("unexpected path: %v", path)
	}
}

func TestShortestPathSameNode(t *testing.T) {
	store := buildGraph(t, edge("P1", "P2"))
	path, err := ShortestPath(store, "P1", "P1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(path, []string{"P1"}) {
		t.Errorf("unexpected path: %v", path)
	}
}

func TestShortestPathDisconnected(t *testing.T) {
	store := buildGraph(t, edge("P1", "P2"), edge("P3", "P4"))
	_, err := ShortestPath(store, "P1", "P4")
	if !errors.Is(err, ErrNoPath) {
		t.Errorf("expected ErrNoPath, got %v", err)
	}
}

func TestShortestPathMissingEndpoint(t *testing.T) {
	store := buildGraph(t, edge("P1", "P2"))
	_, err := ShortestPath(store, "P1", "nope")
	if !errors.Is(err, ErrPaperNotFound) {
		t.Errorf("expected ErrPaperNotFound, got %v", err)
	}
}

func TestCoCitations(t *testing.T) {
	// C1 and C2 cite both A and B; C3 cites only A.
	store := buildGraph(t,
		edge("C1", "A"), edge("C1", "B"),
		edge("C2", "A"), edge("C2", "B"),
		edge("C3", "A"))

	n, err := CoCitations(store, "A", "B")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 co-citations, got %d", n)
	}
}

func TestCoCitedClusters(t *testing.T) {
	// {A, B} share two citers; {X, Y} share one; D is cited once.
	store := buildGraph(t,
		edge("C1", "A"), edge("C1", "B"),
		edge("C2", "A"), edge("C2", "B"),
		edge("C3", "X"), edge("C3", "Y"),
		edge("C4", "D"))

	clusters, err := CoCitedClusters(store, 2)
	if err != nil {
		t.Fatalf("CoCitedClusters failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster at threshold 2, got %v", clusters)
	}
	if !reflect.DeepEqual(clusters[0].Papers, []string{"A", "B"}) {
		t.Errorf("unexpected cluster members: %v", clusters[0].Papers)
	}

	clusters, err = CoCitedClusters(store, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters at threshold 1, got %v", clusters)
	}
}

func TestCoCitedClustersTransitive(t *testing.T) {
	// A-B share a citer and B-C share a citer: one component {A, B, C}.
	store := buildGraph(t,
		edge("C1", "A"), edge("C1", "B"),
		edge("C2", "B"), edge("C2", "C"))

	clusters, err := CoCitedClusters(store, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected a single component, got %v", clusters)
	}
	if !reflect.DeepEqual(clusters[0].Papers, []string{"A", "B", "C"}) {
		t.Errorf("unexpected members: %v", clusters[0].Papers)
	}
}
