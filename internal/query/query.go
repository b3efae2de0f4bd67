// Package query provides read-only traversal helpers over the committed
// citation graph: neighborhood expansion, shortest paths, and co-citation
// clustering. Nothing here mutates graph state.
package query

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mschladt/rtk/internal/graph"
)

// Reader is the read surface of the graph store the query layer needs.
type Reader interface {
	GetPaper(id string) (*graph.Paper, error)
	OutNeighbors(id string) ([]string, error)
	InNeighbors(id string) ([]string, error)
	PaperIDs() ([]string, error)
}

// Query errors.
var (
	ErrPaperNotFound = errors.New("paper not in graph")
	ErrNoPath        = errors.New("no citation path between papers")
)

// Direction selects which citation edges a traversal follows.
type Direction string

const (
	// DirectionOut follows references: papers the start paper cites.
	DirectionOut Direction = "out"
	// DirectionIn follows citations: papers citing the start paper.
	DirectionIn Direction = "in"
	// DirectionBoth follows edges in both directions.
	DirectionBoth Direction = "both"
)

// Node is a paper reached by a traversal, with its hop distance from the
// start paper.
type Node struct {
	ID       string `json:"id"`
	Distance int    `json:"distance"`
}

func neighbors(r Reader, id string, dir Direction) ([]string, error) {
	switch dir {
	case DirectionOut:
		return r.OutNeighbors(id)
	case DirectionIn:
		return r.InNeighbors(id)
	case DirectionBoth:
		out, err := r.OutNeighbors(id)
		if err != nil {
			return nil, err
		}
		in, err := r.InNeighbors(id)
		if err != nil {
			return nil, err
		}
		return append(out, in...), nil
	default:
		return nil, fmt.Errorf("unknown direction %q", dir)
	}
}

// Neighborhood returns all papers within k hops of the start paper,
// following edges in the given direction. The start paper itself is
// excluded. Results are ordered by distance, then ID.
func Neighborhood(r Reader, start string, k int, dir Direction) ([]Node, error) {
	p, err := r.GetPaper(start)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, start)
	}

	// The graph is cyclic; BFS with an explicit visited set.
	visited := map[string]bool{start: true}
	frontier := []string{start}
	var result []Node

	for dist := 1; dist <= k && len(frontier) > 0; dist++ {
		var next []string
		for _, id := range frontier {
			adj, err := neighbors(r, id, dir)
			if err != nil {
				return nil, err
			}
			for _, nb := range adj {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				result = append(result, Node{ID: nb, Distance: dist})
				next = append(next, nb)
			}
		}
		frontier = next
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ShortestPath returns the shortest chain of papers connecting from and to,
// treating citation edges as undirected (a citation in either direction
// links two papers). Returns ErrNoPath when the papers are disconnected.
func ShortestPath(r Reader, from, to string) ([]string, error) {
	for _, id := range []string{from, to} {
		p, err := r.GetPaper(id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, id)
		}
	}
	if from == to {
		return []string{from}, nil
	}

	// Unweighted BFS, tracking predecessors for path reconstruction.
	prev := map[string]string{from: ""}
	frontier := []string{from}

	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			adj, err := neighbors(r, id, DirectionBoth)
			if err != nil {
				return nil, err
			}
			for _, nb := range adj {
				if _, seen := prev[nb]; seen {
					continue
				}
				prev[nb] = id
				if nb == to {
					return reconstruct(prev, from, to), nil
				}
				next = append(next, nb)
			}
		}
		frontier = next
	}

	return nil, fmt.Errorf("%w: %s and %s", ErrNoPath, from, to)
}

func reconstruct(prev map[string]string, from, to string) []string {
	var path []string
	for id := to; id != ""; id = prev[id] {
		path = append(path, id)
	}
	// Reverse into from -> to order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// CoCitations returns the number of papers citing both a and b.
func CoCitations(r Reader, a, b string) (int, error) {
	citersA, err := r.InNeighbors(a)
	if err != nil {
		return 0, err
	}
	citersB, err := r.InNeighbors(b)
	if err != nil {
		return 0, err
	}

	inA := make(map[string]bool, len(citersA))
	for _, id := range citersA {
		inA[id] = true
	}
	shared := 0
	for _, id := range citersB {
		if inA[id] {
			shared++
		}
	}
	return shared, nil
}

// Cluster is a group of papers linked by co-citation.
type Cluster struct {
	Papers []string `json:"papers"`
}

// CoCitedClusters groups papers that share at least minShared common citing
// papers, returning the connected components of that relation. Components
// of a single paper are omitted. Clusters are ordered by size (descending),
// then by first member; members are sorted by ID.
func CoCitedClusters(r Reader, minShared int) ([]Cluster, error) {
	if minShared < 1 {
		minShared = 1
	}
	ids, err := r.PaperIDs()
	if err != nil {
		return nil, err
	}

	// Count shared citers pairwise: every citing paper contributes one
	// co-citation to each pair of papers it cites.
	pairs := make(map[graph.CitationKey]int)
	for _, citer := range ids {
		cited, err := r.OutNeighbors(citer)
		if err != nil {
			return nil, err
		}
		sort.Strings(cited)
		for i := 0; i < len(cited); i++ {
			for j := i + 1; j < len(cited); j++ {
				pairs[graph.CitationKey{SourceID: cited[i], TargetID: cited[j]}]++
			}
		}
	}

	// Union-find over pairs meeting the threshold.
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == x {
			return x
		}
		parent[x] = find(parent[x])
		return parent[x]
	}
	union := func(a, b string) {
		for _, x := range []string{a, b} {
			if _, ok := parent[x]; !ok {
				parent[x] = x
			}
		}
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for pair, n := range pairs {
		if n >= minShared {
			union(pair.SourceID, pair.TargetID)
		}
	}

	groups := make(map[string][]string)
	for x := range parent {
		root := find(x)
		groups[root] = append(groups[root], x)
	}

	var clusters []Cluster
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		clusters = append(clusters, Cluster{Papers: members})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i].Papers) != len(clusters[j].Papers) {
			return len(clusters[i].Papers) > len(clusters[j].Papers)
		}
		return clusters[i].Papers[0] < clusters[j].Papers[0]
	})
	return clusters, nil
}
