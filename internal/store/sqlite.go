package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matsen/citetrack/internal/citation"
	_ "modernc.org/sqlite"
)

// busyTimeoutMS is how long a second invocation waits for the job's write
// lock. The window must outlast a full add pipeline, which can spend most
// of a minute in registry retries.
const busyTimeoutMS = 60000

// selectCitationFields is the standard field list for SELECT queries.
const selectCitationFields = `id, number, doi, pmid, pmcid, issn, url,
	type, title, container_title, publisher, volume, issue, pages, abstract,
	pub_year, pub_month, pub_day,
	validated, validation_method, added_by, added_at, authors_json`

// Open loads the store for writing. It takes the job database's write lock
// before reading, and holds it until Commit or Close: a concurrent
// invocation blocks at Open, then loads a state that already includes this
// one's insertions. This is what keeps duplicate detection honest across
// processes; without the lock, two invocations could both conclude "no
// duplicate" and both hand out the same citation number.
func Open(path, jobID string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	// _txlock=immediate: the write lock is taken at Begin, not at the
	// first write, so the load below already sees a settled database.
	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("locking job database: %w", err)
	}

	s, err := loadFrom(tx, jobID)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, err
	}
	s.db = db
	s.tx = tx
	return s, nil
}

// Commit writes every record to the job database within the held
// transaction and releases the write lock. Records are upserted, never
// deleted: the store only grows.
func (s *Store) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("store for job %s is not open for writing", s.jobID)
	}

	err := func() error {
		if err := s.writeAll(s.tx); err != nil {
			s.tx.Rollback()
			return err
		}
		return s.tx.Commit()
	}()
	s.db.Close()
	s.tx, s.db = nil, nil
	return err
}

// Close releases the write lock without saving. Harmless on a store that
// was never opened for writing.
func (s *Store) Close() error {
	if s.tx == nil {
		return nil
	}
	s.tx.Rollback()
	err := s.db.Close()
	s.tx, s.db = nil, nil
	return err
}

func (s *Store) writeAll(tx *sql.Tx) error {
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('job_id', ?)`, s.jobID); err != nil {
		return fmt.Errorf("writing job id: %w", err)
	}

	citStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO citations (` + selectCitationFields + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing citation upsert: %w", err)
	}
	defer citStmt.Close()

	usageStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO usages (id, citation_id, excerpt, rationale, context_value,
			supporting_claim, locator, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing usage upsert: %w", err)
	}
	defer usageStmt.Close()

	for _, c := range s.All() {
		authorsJSON, err := json.Marshal(c.Authors)
		if err != nil {
			return fmt.Errorf("marshaling authors for %s: %w", c.ID, err)
		}

		_, err = citStmt.Exec(
			c.ID, c.Number, c.DOI, c.PMID, c.PMCID, c.ISSN, c.URL,
			string(c.Type), c.Title, c.ContainerTitle, c.Publisher,
			c.Volume, c.Issue, c.Pages, c.Abstract,
			c.Issued.Year, c.Issued.Month, c.Issued.Day,
			boolToInt(c.Validated), string(c.ValidationMethod),
			c.AddedBy, c.AddedAt.UTC().Format(time.RFC3339), string(authorsJSON),
		)
		if err != nil {
			return fmt.Errorf("upserting citation %s: %w", c.ID, err)
		}

		for _, u := range c.Usages {
			_, err = usageStmt.Exec(
				u.ID, c.ID, u.Excerpt, u.Rationale, u.ContextValue,
				u.SupportingClaim, u.Locator, string(u.Kind),
				u.CreatedAt.UTC().Format(time.RFC3339),
			)
			if err != nil {
				return fmt.Errorf("upserting usage %s for %s: %w", u.ID, c.ID, err)
			}
		}
	}

	return nil
}

// Load restores a store for reading only. No lock is held afterward; a
// command that mutates must use Open instead.
func Load(path, jobID string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return loadFrom(db, jobID)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// loadFrom reads the full store state. The stored job id must match the
// requested one: a mismatch means the caller is reaching into another
// job's data, which the isolation boundary forbids.
func loadFrom(q querier, jobID string) (*Store, error) {
	var storedJob string
	err := q.QueryRow(`SELECT value FROM meta WHERE key = 'job_id'`).Scan(&storedJob)
	if err == sql.ErrNoRows {
		storedJob = jobID // Fresh database
	} else if err != nil {
		return nil, fmt.Errorf("reading job id: %w", err)
	}
	if storedJob != jobID {
		return nil, fmt.Errorf("store belongs to job %q, not %q", storedJob, jobID)
	}

	s := New(jobID)

	rows, err := q.Query(`SELECT ` + selectCitationFields + ` FROM citations ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	maxNumber := 0
	for rows.Next() {
		c, err := scanCitation(rows)
		if err != nil {
			return nil, err
		}
		s.citations = append(s.citations, c)
		s.byID[c.ID] = c
		s.byNumber[c.Number] = c
		s.index(c)
		if c.Number > maxNumber {
			maxNumber = c.Number
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading citations: %w", err)
	}
	s.nextNumber = maxNumber + 1

	if err := loadUsages(q, s); err != nil {
		return nil, err
	}

	return s, nil
}

func loadUsages(q querier, s *Store) error {
	rows, err := q.Query(`
		SELECT id, citation_id, excerpt, rationale, context_value,
			supporting_claim, locator, kind, created_at
		FROM usages ORDER BY created_at
	`)
	if err != nil {
		return fmt.Errorf("querying usages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u citation.Usage
		var citationID, kind, createdAt string
		if err := rows.Scan(&u.ID, &citationID, &u.Excerpt, &u.Rationale,
			&u.ContextValue, &u.SupportingClaim, &u.Locator, &kind, &createdAt); err != nil {
			return fmt.Errorf("scanning usage: %w", err)
		}
		u.Kind = citation.UsageKind(kind)
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		c, ok := s.byID[citationID]
		if !ok {
			return fmt.Errorf("usage %s references unknown citation %q", u.ID, citationID)
		}
		c.Usages = append(c.Usages, u)
	}
	return rows.Err()
}

func scanCitation(rows *sql.Rows) (*citation.Citation, error) {
	var c citation.Citation
	var citType, method, addedAt, authorsJSON string
	var validated int

	err := rows.Scan(
		&c.ID, &c.Number, &c.DOI, &c.PMID, &c.PMCID, &c.ISSN, &c.URL,
		&citType, &c.Title, &c.ContainerTitle, &c.Publisher,
		&c.Volume, &c.Issue, &c.Pages, &c.Abstract,
		&c.Issued.Year, &c.Issued.Month, &c.Issued.Day,
		&validated, &method, &c.AddedBy, &addedAt, &authorsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning citation: %w", err)
	}

	c.Type = citation.Type(citType)
	c.Validated = validated != 0
	c.ValidationMethod = citation.Method(method)
	c.AddedAt, _ = time.Parse(time.RFC3339, addedAt)

	if authorsJSON != "" {
		if err := json.Unmarshal([]byte(authorsJSON), &c.Authors); err != nil {
			return nil, fmt.Errorf("unmarshaling authors for %s: %w", c.ID, err)
		}
	}

	return &c, nil
}

// openDB opens or creates the job database and ensures the schema exists.
func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(%d)", path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writers.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS citations (
			id TEXT PRIMARY KEY,
			number INTEGER NOT NULL UNIQUE,
			doi TEXT,
			pmid TEXT,
			pmcid TEXT,
			issn TEXT,
			url TEXT,
			type TEXT NOT NULL,
			title TEXT,
			container_title TEXT,
			publisher TEXT,
			volume TEXT,
			issue TEXT,
			pages TEXT,
			abstract TEXT,
			pub_year INTEGER,
			pub_month INTEGER,
			pub_day INTEGER,
			validated INTEGER NOT NULL,
			validation_method TEXT,
			added_by TEXT,
			added_at TEXT,
			authors_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_citations_doi ON citations(doi) WHERE doi != '';
		CREATE INDEX IF NOT EXISTS idx_citations_pmid ON citations(pmid) WHERE pmid != '';
		CREATE INDEX IF NOT EXISTS idx_citations_url ON citations(url) WHERE url != '';

		CREATE TABLE IF NOT EXISTS usages (
			id TEXT PRIMARY KEY,
			citation_id TEXT NOT NULL REFERENCES citations(id),
			excerpt TEXT,
			rationale TEXT NOT NULL,
			context_value TEXT NOT NULL,
			supporting_claim TEXT NOT NULL,
			locator TEXT,
			kind TEXT NOT NULL,
			created_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_usages_citation ON usages(citation_id);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		);
	`
	_, err := db.Exec(schema)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
