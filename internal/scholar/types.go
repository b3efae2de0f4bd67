// Package scholar provides a rate-limited client for the Semantic Scholar
// Academic Graph API.
package scholar

// PaperRecord represents a paper as returned by the Semantic Scholar API.
type PaperRecord struct {
	PaperID        string         `json:"paperId"`
	ExternalIDs    ExternalIDs    `json:"externalIds,omitempty"`
	Title          string         `json:"title"`
	Abstract       string         `json:"abstract,omitempty"`
	Venue          string         `json:"venue,omitempty"`
	Year           int            `json:"year,omitempty"`
	CitationCount  int            `json:"citationCount,omitempty"`
	ReferenceCount int            `json:"referenceCount,omitempty"`
	Authors        []AuthorRecord `json:"authors,omitempty"`
}

// ExternalIDs contains secondary identifiers for a paper.
type ExternalIDs struct {
	DOI           string `json:"DOI,omitempty"`
	ArXiv         string `json:"ArXiv,omitempty"`
	PubMed        string `json:"PubMed,omitempty"`
	PubMedCentral string `json:"PubMedCentral,omitempty"`
	CorpusID      int    `json:"CorpusId,omitempty"`
}

// AuthorRecord represents an author as returned by the API.
type AuthorRecord struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// Page is one page of a paginated references or citations listing.
// Offset is the position this page started at; when More is true the next
// page can be requested with offset Next (a listing is restartable from any
// page boundary).
type Page struct {
	Records []PaperRecord
	Offset  int
	Next    int
	More    bool
}

// linkPage mirrors the wire format of the references/citations endpoints.
// Each entry wraps the related paper under citingPaper or citedPaper
// depending on the endpoint.
type linkPage struct {
	Offset int  `json:"offset"`
	Next   *int `json:"next,omitempty"`
	Data   []struct {
		CitingPaper *PaperRecord `json:"citingPaper,omitempty"`
		CitedPaper  *PaperRecord `json:"citedPaper,omitempty"`
	} `json:"data"`
}

// PaperIdentifier represents a parsed paper identifier.
type PaperIdentifier struct {
	Type  string // DOI, ARXIV, PMID, PMCID, CorpusId, URL, MAG, ACL, S2, RAW
	Value string
}

// String returns the API format for the identifier.
func (p PaperIdentifier) String() string {
	switch p.Type {
	case "S2", "RAW":
		return p.Value // raw IDs carry no prefix
	default:
		return p.Type + ":" + p.Value
	}
}
