// Package graphstore persists the citation graph in SQLite behind an
// upsert-only adapter. All four write operations are idempotent merges by
// key: re-applying an upsert with identical data is a no-op, applying it
// with changed fields updates in place.
package graphstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mschladt/rtk/internal/graph"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding the property graph.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates a graph database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			year INTEGER,
			venue TEXT,
			abstract TEXT,
			citation_count INTEGER NOT NULL DEFAULT 0,
			reference_count INTEGER NOT NULL DEFAULT 0,
			stub INTEGER NOT NULL DEFAULT 0,
			fetched_at TEXT
		);

		CREATE TABLE IF NOT EXISTS authors (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS authored (
			paper_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (paper_id, author_id)
		);

		CREATE TABLE IF NOT EXISTS citations (
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			PRIMARY KEY (source_id, target_id)
		);

		CREATE INDEX IF NOT EXISTS idx_citations_source ON citations(source_id);
		CREATE INDEX IF NOT EXISTS idx_citations_target ON citations(target_id);
		CREATE INDEX IF NOT EXISTS idx_authored_author ON authored(author_id);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertPaper inserts or merges a fetched paper by ID. The stub flag is
// always cleared: only real fetches go through this operation, stubs are
// created internally by UpsertCitation.
func (s *Store) UpsertPaper(p graph.Paper) error {
	if p.ID == "" {
		return graph.ErrEmptyPaperID
	}

	fetchedAt := p.FetchedAt
	if fetchedAt == "" {
		fetchedAt = s.now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.Exec(`
		INSERT INTO papers (id, title, year, venue, abstract, citation_count, reference_count, stub, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			year = excluded.year,
			venue = excluded.venue,
			abstract = excluded.abstract,
			citation_count = excluded.citation_count,
			reference_count = excluded.reference_count,
			stub = 0,
			fetched_at = excluded.fetched_at
	`, p.ID, p.Title, nullableInt(p.Year), nullableStr(p.Venue), nullableStr(p.Abstract),
		p.CitationCount, p.ReferenceCount, fetchedAt)
	if err != nil {
		return fmt.Errorf("upserting paper %s: %w", p.ID, err)
	}
	return nil
}

// UpsertAuthor inserts or merges an author by ID.
func (s *Store) UpsertAuthor(a graph.Author) error {
	if a.ID == "" {
		return graph.ErrEmptyAuthorID
	}
	_, err := s.db.Exec(`
		INSERT INTO authors (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, a.ID, a.Name)
	if err != nil {
		return fmt.Errorf("upserting author %s: %w", a.ID, err)
	}
	return nil
}

// LinkAuthored records that the author wrote the paper, at the given
// position in the author list.
func (s *Store) LinkAuthored(paperID, authorID string, position int) error {
	if paperID == "" {
		return graph.ErrEmptyPaperID
	}
	if authorID == "" {
		return graph.ErrEmptyAuthorID
	}
	_, err := s.db.Exec(`
		INSERT INTO authored (paper_id, author_id, position) VALUES (?, ?, ?)
		ON CONFLICT(paper_id, author_id) DO UPDATE SET position = excluded.position
	`, paperID, authorID, position)
	if err != nil {
		return fmt.Errorf("linking author %s to paper %s: %w", authorID, paperID, err)
	}
	return nil
}

// UpsertCitation records a directed citation edge. Placeholder (stub)
// paper nodes are created first for any endpoint not yet in the store, so
// no edge ever references a nonexistent paper.
func (s *Store) UpsertCitation(c graph.Citation) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.ensureStub(c.SourceID); err != nil {
		return err
	}
	if err := s.ensureStub(c.TargetID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO citations (source_id, target_id) VALUES (?, ?)
		ON CONFLICT(source_id, target_id) DO NOTHING
	`, c.SourceID, c.TargetID)
	if err != nil {
		return fmt.Errorf("upserting citation %s -> %s: %w", c.SourceID, c.TargetID, err)
	}
	return nil
}

// ensureStub creates a placeholder paper node if the ID is not present.
// Existing nodes (stub or real) are left untouched.
func (s *Store) ensureStub(id string) error {
	_, err := s.db.Exec(`
		INSERT INTO papers (id, stub) VALUES (?, 1)
		ON CONFLICT(id) DO NOTHING
	`, id)
	if err != nil {
		return fmt.Errorf("creating stub %s: %w", id, err)
	}
	return nil
}

// GetPaper retrieves a paper by ID. Returns (nil, nil) when absent.
func (s *Store) GetPaper(id string) (*graph.Paper, error) {
	row := s.db.QueryRow(`
		SELECT id, title, year, venue, abstract, citation_count, reference_count, stub, fetched_at
		FROM papers WHERE id = ?
	`, id)

	var p graph.Paper
	var year sql.NullInt64
	var venue, abstract, fetchedAt sql.NullString
	var stub int
	err := row.Scan(&p.ID, &p.Title, &year, &venue, &abstract,
		&p.CitationCount, &p.ReferenceCount, &stub, &fetchedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("getting paper %s: %w", id, err)
	}

	p.Year = int(year.Int64)
	p.Venue = venue.String
	p.Abstract = abstract.String
	p.FetchedAt = fetchedAt.String
	p.Stub = stub != 0
	return &p, nil
}

// AuthorsOf returns the authors of a paper in list order.
func (s *Store) AuthorsOf(paperID string) ([]graph.Author, error) {
	rows, err := s.db.Query(`
		SELECT a.id, a.name
		FROM authored l JOIN authors a ON a.id = l.author_id
		WHERE l.paper_id = ?
		ORDER BY l.position
	`, paperID)
	if err != nil {
		return nil, fmt.Errorf("querying authors of %s: %w", paperID, err)
	}
	defer rows.Close()

	var authors []graph.Author
	for rows.Next() {
		var a graph.Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// PapersBy returns the IDs of papers written by the author.
func (s *Store) PapersBy(authorID string) ([]string, error) {
	return s.idColumn(`SELECT paper_id FROM authored WHERE author_id = ? ORDER BY paper_id`, authorID)
}

// OutNeighbors returns the papers the given paper cites (its references).
func (s *Store) OutNeighbors(id string) ([]string, error) {
	return s.idColumn(`SELECT target_id FROM citations WHERE source_id = ? ORDER BY target_id`, id)
}

// InNeighbors returns the papers citing the given paper.
func (s *Store) InNeighbors(id string) ([]string, error) {
	return s.idColumn(`SELECT source_id FROM citations WHERE target_id = ? ORDER BY source_id`, id)
}

// PaperIDs returns all paper IDs in the store, stubs included.
func (s *Store) PaperIDs() ([]string, error) {
	return s.idColumn(`SELECT id FROM papers ORDER BY id`)
}

func (s *Store) idColumn(query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPapers returns papers ordered by ID, optionally limited.
func (s *Store) ListPapers(limit int) ([]graph.Paper, error) {
	query := `
		SELECT id, title, year, venue, abstract, citation_count, reference_count, stub, fetched_at
		FROM papers ORDER BY id
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var papers []graph.Paper
	for rows.Next() {
		var p graph.Paper
		var year sql.NullInt64
		var venue, abstract, fetchedAt sql.NullString
		var stub int
		if err := rows.Scan(&p.ID, &p.Title, &year, &venue, &abstract,
			&p.CitationCount, &p.ReferenceCount, &stub, &fetchedAt); err != nil {
			return nil, err
		}
		p.Year = int(year.Int64)
		p.Venue = venue.String
		p.Abstract = abstract.String
		p.FetchedAt = fetchedAt.String
		p.Stub = stub != 0
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// CountPapers returns the total number of paper nodes, stubs included.
func (s *Store) CountPapers() (int, error) {
	return s.count(`SELECT COUNT(*) FROM papers`)
}

// CountStubs returns the number of placeholder paper nodes.
func (s *Store) CountStubs() (int, error) {
	return s.count(`SELECT COUNT(*) FROM papers WHERE stub = 1`)
}

// CountAuthors returns the total number of author nodes.
func (s *Store) CountAuthors() (int, error) {
	return s.count(`SELECT COUNT(*) FROM authors`)
}

// CountCitations returns the total number of citation edges.
func (s *Store) CountCitations() (int, error) {
	return s.count(`SELECT COUNT(*) FROM citations`)
}

func (s *Store) count(query string) (int, error) {
	var n int
	err := s.db.QueryRow(query).Scan(&n)
	return n, err
}

func nullableStr(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullableInt(v int) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}
