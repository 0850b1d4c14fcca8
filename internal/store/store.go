// Package store holds the per-job citation collection: the canonical set of
// verified citations, identifier indexes for exact-match lookup, and the
// monotone citation-number counter. One Store exists per job and is never
// shared across jobs.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/validate"
)

// Store is the per-job citation collection. Reads are safe for concurrent
// use; the check-then-insert sequence is serialized by the manager's
// critical section, with the store's own lock guarding each mutation.
// Across processes, Open holds the job database's write lock from load to
// Commit, so two invocations adding to the same job serialize instead of
// overwriting each other.
type Store struct {
	mu    sync.RWMutex
	jobID string

	citations []*citation.Citation // Insertion order; earliest is canonical on merge
	byID      map[string]*citation.Citation
	byNumber  map[int]*citation.Citation
	byDOI     map[string]*citation.Citation
	byPMID    map[string]*citation.Citation
	byURL     map[string]*citation.Citation

	nextNumber int

	// Set by Open: the held write transaction on the job database.
	db *sql.DB
	tx *sql.Tx
}

// New creates an empty store scoped to the given job.
func New(jobID string) *Store {
	return &Store{
		jobID:      jobID,
		byID:       make(map[string]*citation.Citation),
		byNumber:   make(map[int]*citation.Citation),
		byDOI:      make(map[string]*citation.Citation),
		byPMID:     make(map[string]*citation.Citation),
		byURL:      make(map[string]*citation.Citation),
		nextNumber: 1,
	}
}

// JobID returns the owning job's identifier.
func (s *Store) JobID() string { return s.jobID }

// Insert persists a validated citation: assigns its citation number, ensures
// a unique citekey, and registers identifier indexes. The citation must
// already carry a confirmed identifier or URL.
func (s *Store) Insert(c *citation.Citation) error {
	if !c.Validated {
		return fmt.Errorf("citation %q is not validated", c.ID)
	}
	if !c.HasIdentifier() {
		return fmt.Errorf("citation %q has no confirmed identifier or URL", c.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = c.CiteKey()
	}
	c.ID = s.uniqueID(c.ID)

	c.Number = s.nextNumber
	s.nextNumber++

	// A number collision means the counter discipline is broken. That is
	// a bug, not a data condition.
	if _, taken := s.byNumber[c.Number]; taken {
		panic(fmt.Sprintf("store: citation number %d already assigned in job %s", c.Number, s.jobID))
	}

	s.citations = append(s.citations, c)
	s.byID[c.ID] = c
	s.byNumber[c.Number] = c
	s.index(c)
	return nil
}

// Reindex registers any identifiers a merge added to an existing record.
func (s *Store) Reindex(c *citation.Citation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index(c)
}

func (s *Store) index(c *citation.Citation) {
	if c.DOI != "" {
		s.byDOI[validate.NormalizeDOI(c.DOI)] = c
	}
	if c.PMID != "" {
		s.byPMID[c.PMID] = c
	}
	if c.URL != "" {
		s.byURL[validate.NormalizeURL(c.URL)] = c
	}
}

// uniqueID suffixes a citekey with -2, -3, ... until it is unused.
func (s *Store) uniqueID(id string) string {
	if _, exists := s.byID[id]; !exists {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if _, exists := s.byID[candidate]; !exists {
			return candidate
		}
	}
}

// Get returns a citation by its internal ID.
func (s *Store) Get(id string) (*citation.Citation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	return c, ok
}

// GetByNumber returns a citation by its citation number.
func (s *Store) GetByNumber(n int) (*citation.Citation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byNumber[n]
	return c, ok
}

// FindByIdentifier returns the record indexed under a normalized external
// identifier, if any.
func (s *Store) FindByIdentifier(id validate.Identifier) (*citation.Citation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c *citation.Citation
	var ok bool
	switch id.Family {
	case validate.FamilyDOI:
		c, ok = s.byDOI[id.Normalized()]
	case validate.FamilyPMID:
		c, ok = s.byPMID[id.Value]
	case validate.FamilyURL:
		c, ok = s.byURL[id.Normalized()]
	}
	return c, ok
}

// All returns the citations in insertion order. The slice is a copy; the
// records are shared.
func (s *Store) All() []*citation.Citation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*citation.Citation, len(s.citations))
	copy(out, s.citations)
	return out
}

// Len returns the number of stored citations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.citations)
}

// AppendUsage attaches a gate-passed usage to an existing citation.
func (s *Store) AppendUsage(citationID string, u citation.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[citationID]
	if !ok {
		return fmt.Errorf("citation %q not found", citationID)
	}
	c.Usages = append(c.Usages, u)
	return nil
}
