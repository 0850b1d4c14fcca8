package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/matsen/citetrack/internal/citation"
)

func TestCommitLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.db")

	s, err := Open(path, "job-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	c := validCitation("10.1038/nature12373", "A Landmark Study", 2013, "Smith")
	c.PMID = "23883930"
	c.ContainerTitle = "Nature"
	c.Issued = citation.DateParts{Year: 2013, Month: 7, Day: 25}
	c.AddedBy = "agent-7"
	c.AddedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.Usages = []citation.Usage{{
		ID:              "u1",
		Rationale:       "establishes the central claim we cite",
		ContextValue:    "provides the primary dataset for our comparison",
		SupportingClaim: "response rates exceeded baseline in all cohorts",
		Kind:            citation.UsageEvidence,
		CreatedAt:       time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC),
	}}
	if err := s.Insert(c); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(validCitation("10.1000/b", "Second Paper", 2020, "Doe")); err != nil {
		t.Fatal(err)
	}

	if err := s.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	loaded, err := Load(path, "job-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Len() != 2 {
		t.Fatalf("loaded Len() = %d, want 2", loaded.Len())
	}

	got, ok := loaded.Get(c.ID)
	if !ok {
		t.Fatalf("citation %q missing after reload", c.ID)
	}
	if got.Number != 1 || got.DOI != "10.1038/nature12373" || got.PMID != "23883930" {
		t.Errorf("identity fields wrong after reload: %+v", got)
	}
	if got.Issued != (citation.DateParts{Year: 2013, Month: 7, Day: 25}) {
		t.Errorf("Issued = %+v after reload", got.Issued)
	}
	if len(got.Authors) != 1 || got.Authors[0].Family != "Smith" {
		t.Errorf("Authors = %+v after reload", got.Authors)
	}
	if len(got.Usages) != 1 || got.Usages[0].ID != "u1" {
		t.Fatalf("Usages = %+v after reload", got.Usages)
	}
	if got.Usages[0].Rationale != "establishes the central claim we cite" {
		t.Errorf("usage rationale lost: %+v", got.Usages[0])
	}
	if !got.Validated {
		t.Error("Validated flag lost")
	}
	if !got.AddedAt.Equal(c.AddedAt) {
		t.Errorf("AddedAt = %v, want %v", got.AddedAt, c.AddedAt)
	}
}

func TestOpenContinuesNumbering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.db")

	s, err := Open(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(validCitation("10.1000/a", "First", 2020, "Smith")); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(validCitation("10.1000/b", "Second", 2021, "Doe")); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	c := validCitation("10.1000/c", "Third", 2022, "Lee")
	if err := reopened.Insert(c); err != nil {
		t.Fatal(err)
	}
	if c.Number != 3 {
		t.Errorf("number after reload = %d, want 3: numbers are never reused", c.Number)
	}
}

// Two invocations adding to the same job must serialize: the second blocks
// at Open until the first commits, then loads a state that already contains
// the first's citation. Neither record may be lost and the numbers must
// differ.
func TestConcurrentInvocationsSerialize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.db")

	first, err := Open(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}

	type opened struct {
		s   *Store
		err error
	}
	second := make(chan opened)
	go func() {
		s, err := Open(path, "job-1")
		second <- opened{s, err}
	}()

	// The second Open must not return while the first holds the lock.
	select {
	case o := <-second:
		if o.err == nil {
			o.s.Close()
		}
		t.Fatal("second Open returned while the first invocation held the write lock")
	case <-time.After(200 * time.Millisecond):
	}

	a := validCitation("10.1000/a", "First Invocation's Paper", 2020, "Smith")
	if err := first.Insert(a); err != nil {
		t.Fatal(err)
	}
	if err := first.Commit(); err != nil {
		t.Fatal(err)
	}

	o := <-second
	if o.err != nil {
		t.Fatalf("second Open() error = %v", o.err)
	}
	s2 := o.s
	defer s2.Close()

	// The second invocation sees the first's insertion, so its duplicate
	// check runs against it.
	if s2.Len() != 1 {
		t.Fatalf("second invocation loaded %d citations, want 1", s2.Len())
	}
	if _, ok := s2.Get(a.ID); !ok {
		t.Fatalf("citation %q not visible to the second invocation", a.ID)
	}

	b := validCitation("10.1000/b", "Second Invocation's Paper", 2021, "Doe")
	if err := s2.Insert(b); err != nil {
		t.Fatal(err)
	}
	if b.Number != 2 {
		t.Errorf("second invocation assigned number %d, want 2", b.Number)
	}
	if err := s2.Commit(); err != nil {
		t.Fatal(err)
	}

	final, err := Load(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if final.Len() != 2 {
		t.Fatalf("final store has %d citations, want both invocations' records", final.Len())
	}
	if _, ok := final.Get(a.ID); !ok {
		t.Error("first invocation's citation lost")
	}
	if _, ok := final.Get(b.ID); !ok {
		t.Error("second invocation's citation lost")
	}
}

func TestCloseReleasesLockWithoutSaving(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.db")

	s, err := Open(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(validCitation("10.1000/a", "Paper", 2020, "Smith")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	loaded, err := Load(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 0 {
		t.Errorf("Len() = %d after Close without Commit, want 0", loaded.Len())
	}
}

func TestCommitRequiresOpen(t *testing.T) {
	s := New("job-1")
	if err := s.Commit(); err == nil {
		t.Error("Commit() on an in-memory store should fail")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on an in-memory store should be harmless, got %v", err)
	}
}

func TestOpenRejectsWrongJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.db")

	s, err := Open(path, "job-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(validCitation("10.1000/a", "Paper", 2020, "Smith")); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, "job-b"); err == nil {
		t.Error("Load() should refuse another job's store")
	}
	if _, err := Open(path, "job-b"); err == nil {
		t.Error("Open() should refuse another job's store")
	}

	// The failed Open must not leave the lock held.
	again, err := Open(path, "job-a")
	if err != nil {
		t.Fatalf("Open() after rejected open error = %v", err)
	}
	again.Close()
}

func TestLoadFreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.db")

	s, err := Load(path, "job-new")
	if err != nil {
		t.Fatalf("Load() on fresh path error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("fresh store Len() = %d, want 0", s.Len())
	}
	if s.JobID() != "job-new" {
		t.Errorf("JobID() = %q", s.JobID())
	}
}

func TestRecommitKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.db")

	s, err := Open(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(validCitation("10.1000/a", "Paper", 2020, "Smith")); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	// A later invocation that merely appends a usage upserts the same row.
	s, err = Open(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	c := s.All()[0]
	if err := s.AppendUsage(c.ID, citation.Usage{
		ID:              "u-extra",
		Rationale:       "supplies the replication data the revision cites",
		ContextValue:    "second analysis section relies on the same cohort",
		SupportingClaim: "the effect replicates in the held-out cohort",
		Kind:            citation.UsageEvidence,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("Len() = %d after recommit, want 1", loaded.Len())
	}
	got, _ := loaded.Get(c.ID)
	if len(got.Usages) != 1 {
		t.Errorf("got %d usages, want the appended one", len(got.Usages))
	}
}
