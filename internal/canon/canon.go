// Package canon converts raw Semantic Scholar records into canonical graph
// entities with stable identifiers. Normalization is deterministic: the same
// raw record always yields the same canonical output, which is what makes
// store upserts idempotent.
package canon

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mschladt/rtk/internal/graph"
	"github.com/mschladt/rtk/internal/scholar"
)

// ErrUnidentifiable indicates a record carries no usable identifier under
// any supported scheme. Such records are skipped and logged, never fatal.
var ErrUnidentifiable = errors.New("record has no usable identifier")

// StableID derives the stable external identifier for a record.
// Preference order: S2 paper ID, then DOI, ArXiv ID, corpus ID.
// Returns "" when no scheme applies.
func StableID(rec scholar.PaperRecord) string {
	if id := strings.TrimSpace(rec.PaperID); id != "" {
		return id
	}
	if doi := scholar.NormalizeDOI(rec.ExternalIDs.DOI); doi != "" {
		return "DOI:" + doi
	}
	if arxiv := strings.TrimSpace(rec.ExternalIDs.ArXiv); arxiv != "" {
		return "ARXIV:" + arxiv
	}
	if rec.ExternalIDs.CorpusID != 0 {
		return "CorpusId:" + strconv.Itoa(rec.ExternalIDs.CorpusID)
	}
	return ""
}

// Normalize converts a raw record into a canonical Paper and its ordered
// authors. Returns ErrUnidentifiable when no stable identifier can be
// derived.
func Normalize(rec scholar.PaperRecord) (graph.Paper, []graph.Author, error) {
	id := StableID(rec)
	if id == "" {
		return graph.Paper{}, nil, fmt.Errorf("%w (title: %q)", ErrUnidentifiable, rec.Title)
	}

	paper := graph.Paper{
		ID:             id,
		Title:          collapseWhitespace(rec.Title),
		Year:           rec.Year,
		Venue:          strings.TrimSpace(rec.Venue),
		Abstract:       strings.TrimSpace(rec.Abstract),
		CitationCount:  rec.CitationCount,
		ReferenceCount: rec.ReferenceCount,
	}

	authors := make([]graph.Author, 0, len(rec.Authors))
	for _, a := range rec.Authors {
		name := collapseWhitespace(a.Name)
		aid := strings.TrimSpace(a.AuthorID)
		if aid == "" {
			// No provider ID: fall back to a name-derived key so
			// AUTHORED links stay stable across runs.
			if name == "" {
				continue
			}
			aid = "name:" + strings.ToLower(name)
		}
		authors = append(authors, graph.Author{ID: aid, Name: name})
	}

	return paper, authors, nil
}

// collapseWhitespace trims and collapses runs of whitespace to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
