package validate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/matsen/citetrack/internal/citation"
)

// fakeValidator scripts a sequence of outcomes for one family.
type fakeValidator struct {
	family   Family
	outcomes []fakeOutcome
	calls    int
}

type fakeOutcome struct {
	result *Result
	err    error
}

func (f *fakeValidator) Family() Family { return f.family }

func (f *fakeValidator) Validate(ctx context.Context, id string) (*Result, error) {
	i := f.calls
	f.calls++
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	return f.outcomes[i].result, f.outcomes[i].err
}

// noSleep replaces the backoff delay so retry tests run instantly.
func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestRunner(v Validator) *Runner {
	r := NewRunner("job-1", NewCache(time.Hour), Retry{Attempts: 3, BaseDelay: time.Millisecond}, v)
	r.sleep = noSleep
	return r
}

func confirmed() *Result {
	return &Result{
		Status:   StatusConfirmed,
		Citation: &citation.Citation{DOI: "10.1000/x", Validated: true},
	}
}

func TestRunnerConfirmedFirstTry(t *testing.T) {
	v := &fakeValidator{family: FamilyDOI, outcomes: []fakeOutcome{{result: confirmed()}}}
	r := newTestRunner(v)

	res, err := r.Validate(context.Background(), Identifier{Family: FamilyDOI, Value: "10.1000/x"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Status != StatusConfirmed {
		t.Errorf("Status = %q, want confirmed", res.Status)
	}
	if v.calls != 1 {
		t.Errorf("validator called %d times, want 1", v.calls)
	}
}

func TestRunnerRetriesTransient(t *testing.T) {
	transient := fmt.Errorf("%w: 503", ErrTransient)
	v := &fakeValidator{
		family: FamilyDOI,
		outcomes: []fakeOutcome{
			{err: transient},
			{err: transient},
			{result: confirmed()},
		},
	}
	r := newTestRunner(v)

	res, err := r.Validate(context.Background(), Identifier{Family: FamilyDOI, Value: "10.1000/x"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Status != StatusConfirmed {
		t.Errorf("Status = %q, want confirmed after retries", res.Status)
	}
	if v.calls != 3 {
		t.Errorf("validator called %d times, want 3", v.calls)
	}
}

func TestRunnerExhaustsRetries(t *testing.T) {
	transient := fmt.Errorf("%w: connection refused", ErrTransient)
	v := &fakeValidator{family: FamilyDOI, outcomes: []fakeOutcome{{err: transient}}}
	r := newTestRunner(v)

	_, err := r.Validate(context.Background(), Identifier{Family: FamilyDOI, Value: "10.1000/x"})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("Validate() error = %v, want wrapped ErrTransient", err)
	}
	if v.calls != 3 {
		t.Errorf("validator called %d times, want the full 3 attempts", v.calls)
	}
}

func TestRunnerNonTransientNotRetried(t *testing.T) {
	v := &fakeValidator{family: FamilyDOI, outcomes: []fakeOutcome{{err: errors.New("schema broke")}}}
	r := newTestRunner(v)

	_, err := r.Validate(context.Background(), Identifier{Family: FamilyDOI, Value: "10.1000/x"})
	if err == nil {
		t.Fatal("Validate() should surface non-transient errors")
	}
	if v.calls != 1 {
		t.Errorf("validator called %d times, want 1: non-transient errors are final", v.calls)
	}
}

func TestRunnerCachesDefinitiveOutcomes(t *testing.T) {
	v := &fakeValidator{family: FamilyDOI, outcomes: []fakeOutcome{{result: confirmed()}}}
	r := newTestRunner(v)
	id := Identifier{Family: FamilyDOI, Value: "10.1000/x"}

	if _, err := r.Validate(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Validate(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if v.calls != 1 {
		t.Errorf("validator called %d times, want 1: second lookup must come from cache", v.calls)
	}
}

func TestRunnerCachesNotFound(t *testing.T) {
	v := &fakeValidator{
		family:   FamilyPMID,
		outcomes: []fakeOutcome{{result: &Result{Status: StatusNotFound, Reason: "no such PMID"}}},
	}
	r := newTestRunner(v)
	id := Identifier{Family: FamilyPMID, Value: "999999"}

	res, err := r.Validate(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusNotFound {
		t.Fatalf("Status = %q, want not_found", res.Status)
	}

	if _, err := r.Validate(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if v.calls != 1 {
		t.Errorf("validator called %d times, want 1: not-found is definitive and cached", v.calls)
	}
}

func TestRunnerUnknownFamily(t *testing.T) {
	r := newTestRunner(&fakeValidator{family: FamilyDOI, outcomes: []fakeOutcome{{result: confirmed()}}})

	_, err := r.Validate(context.Background(), Identifier{Family: FamilyURL, Value: "example.org"})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Validate() error = %v, want ErrInvalidFormat for unregistered family", err)
	}
}

func TestRunnerCancelledContext(t *testing.T) {
	transient := fmt.Errorf("%w: timeout", ErrTransient)
	v := &fakeValidator{family: FamilyDOI, outcomes: []fakeOutcome{{err: transient}}}
	r := newTestRunner(v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Validate(ctx, Identifier{Family: FamilyDOI, Value: "10.1000/x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Validate() error = %v, want context.Canceled", err)
	}
}
