// Package graph defines the canonical domain types for the citation graph.
package graph

import "errors"

// Paper represents a paper node in the citation graph.
//
// ID is the provider-stable external identifier and is the deduplication key
// for all upserts. A Paper with Stub set was created to satisfy a citation
// edge before its own metadata was fetched; the flag is cleared by the first
// real fetch.
type Paper struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Year           int    `json:"year,omitempty"`
	Venue          string `json:"venue,omitempty"`
	Abstract       string `json:"abstract,omitempty"`
	CitationCount  int    `json:"citation_count,omitempty"`
	ReferenceCount int    `json:"reference_count,omitempty"`
	Stub           bool   `json:"stub,omitempty"`
	FetchedAt      string `json:"fetched_at,omitempty"` // RFC3339; empty for stubs
}

// Author represents an author node. Papers and authors are many-to-many
// via AUTHORED links.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Citation represents a directed citation edge: the source paper cites the
// target paper. Identity is the (SourceID, TargetID) pair; multi-edges
// collapse to one.
type Citation struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// Validation errors.
var (
	ErrEmptySourceID = errors.New("citation source_id is required")
	ErrEmptyTargetID = errors.New("citation target_id is required")
	ErrSelfCitation  = errors.New("citation source and target cannot be the same paper")
	ErrEmptyPaperID  = errors.New("paper id is required")
	ErrEmptyAuthorID = errors.New("author id is required")
)

// Validate checks that the citation has both endpoints and is not a self-loop.
func (c Citation) Validate() error {
	if c.SourceID == "" {
		return ErrEmptySourceID
	}
	if c.TargetID == "" {
		return ErrEmptyTargetID
	}
	if c.SourceID == c.TargetID {
		return ErrSelfCitation
	}
	return nil
}

// Key returns the identity pair for this citation.
func (c Citation) Key() CitationKey {
	return CitationKey{SourceID: c.SourceID, TargetID: c.TargetID}
}

// CitationKey is the unique identity of a citation edge.
type CitationKey struct {
	SourceID string
	TargetID string
}

// DedupeCitations collapses duplicate (source, target) pairs, preserving
// first-seen order. Invalid edges are dropped.
func DedupeCitations(edges []Citation) []Citation {
	seen := make(map[CitationKey]bool, len(edges))
	var out []Citation
	for _, e := range edges {
		if e.Validate() != nil {
			continue
		}
		k := e.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
