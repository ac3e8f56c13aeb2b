package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Fake record store
// ============================================================================

type fakeRecord struct {
	id       string
	email    string
	name     string
	verified bool
}

// fakeStore is an in-memory RecordStore. Keys are (lower email, lower
// name-or-type), matching the real store's unique index.
type fakeStore struct {
	records map[string]*fakeRecord
	nextID  int

	failFor map[string]error // email -> forced error

	findCalls   int
	insertCalls int
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*fakeRecord),
		failFor: make(map[string]error),
	}
}

func matchKey(email, nameOrType string) string {
	return strings.ToLower(email) + "\x00" + strings.ToLower(nameOrType)
}

func (f *fakeStore) FindMatch(ctx context.Context, email, nameOrType string) (*ExistingRecord, error) {
	f.findCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := f.records[matchKey(email, nameOrType)]
	if !ok {
		return nil, nil
	}
	return &ExistingRecord{ID: rec.id, Email: rec.email, CertName: rec.name, Verified: rec.verified}, nil
}

func (f *fakeStore) Insert(ctx context.Context, c Candidate) error {
	f.insertCalls++
	if err := f.failFor[c.Email]; err != nil {
		return err
	}
	f.nextID++
	f.records[matchKey(c.Email, c.MatchName())] = &fakeRecord{
		id:    fmt.Sprintf("rec-%d", f.nextID),
		email: c.Email,
		name:  c.MatchName(),
	}
	return nil
}

func (f *fakeStore) Update(ctx context.Context, id string, c Candidate) error {
	f.updateCalls++
	if err := f.failFor[c.Email]; err != nil {
		return err
	}
	return nil
}

func cleanCandidate(row int, email, name string) Candidate {
	return Candidate{RowIndex: row, Email: email, CertName: name, Issues: []string{}}
}

// ============================================================================
// Reconcile Tests
// ============================================================================

func TestReconcile_InsertsNewRecords(t *testing.T) {
	store := newFakeStore()
	candidates := []Candidate{
		cleanCandidate(2, "a@b.com", "CPR"),
		cleanCandidate(3, "c@d.com", "Lifeguard"),
	}

	outcomes, result := Reconcile(context.Background(), candidates, store)

	if result.Imported != 2 || result.Updated != 0 || result.Skipped != 0 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, want 2 imported", result)
	}
	for i, o := range outcomes {
		if o.Action != ActionInserted {
			t.Errorf("outcomes[%d].Action = %q, want inserted", i, o.Action)
		}
	}
}

func TestReconcile_UpdatesExisting(t *testing.T) {
	store := newFakeStore()
	if err := store.Insert(context.Background(), cleanCandidate(0, "a@b.com", "CPR")); err != nil {
		t.Fatal(err)
	}

	// Match key is case-insensitive on both halves.
	_, result := Reconcile(context.Background(), []Candidate{cleanCandidate(2, "A@B.COM", "cpr")}, store)

	if result.Updated != 1 || result.Imported != 0 {
		t.Errorf("result = %+v, want 1 updated", result)
	}
}

func TestReconcile_TypeOnlyMatchKey(t *testing.T) {
	store := newFakeStore()
	first := Candidate{RowIndex: 2, Email: "a@b.com", CertType: "Lifeguard", Issues: []string{}}
	second := Candidate{RowIndex: 3, Email: "a@b.com", CertType: "Lifeguard", Issues: []string{}}

	_, result := Reconcile(context.Background(), []Candidate{first, second}, store)

	if result.Imported != 1 || result.Updated != 1 {
		t.Errorf("result = %+v, want 1 imported + 1 updated (type stands in for name)", result)
	}
}

func TestReconcile_SkipsIneligibleWithoutStoreCalls(t *testing.T) {
	store := newFakeStore()
	excluded := cleanCandidate(2, "a@b.com", "CPR")
	excluded.Excluded = true
	withIssues := Candidate{RowIndex: 3, Email: "", Issues: []string{"Missing or invalid email"}}

	outcomes, result := Reconcile(context.Background(), []Candidate{excluded, withIssues}, store)

	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
	if store.findCalls != 0 || store.insertCalls != 0 || store.updateCalls != 0 {
		t.Errorf("store was called for ineligible candidates: find=%d insert=%d update=%d",
			store.findCalls, store.insertCalls, store.updateCalls)
	}
	for i, o := range outcomes {
		if o.Action != ActionSkipped {
			t.Errorf("outcomes[%d].Action = %q, want skipped", i, o.Action)
		}
	}
}

func TestReconcile_PartialFailureContinues(t *testing.T) {
	store := newFakeStore()
	store.failFor["bad@b.com"] = errors.New("unique constraint violated")

	candidates := []Candidate{
		cleanCandidate(2, "ok1@b.com", "CPR"),
		cleanCandidate(3, "bad@b.com", "CPR"),
		cleanCandidate(4, "ok2@b.com", "CPR"),
	}

	_, result := Reconcile(context.Background(), candidates, store)

	if result.Imported != 2 {
		t.Errorf("Imported = %d, want 2 (failure must not abort the batch)", result.Imported)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
	// The error carries enough context to locate the source row.
	if !strings.Contains(result.Errors[0], "row 3") || !strings.Contains(result.Errors[0], "bad@b.com") {
		t.Errorf("error %q missing row/email context", result.Errors[0])
	}
}

// TestReconcile_ConservationLaw verifies that every candidate is
// accounted for: imported + updated + skipped + errors == N.
func TestReconcile_ConservationLaw(t *testing.T) {
	store := newFakeStore()
	store.failFor["fail@b.com"] = errors.New("boom")
	if err := store.Insert(context.Background(), cleanCandidate(0, "existing@b.com", "CPR")); err != nil {
		t.Fatal(err)
	}

	excluded := cleanCandidate(5, "skip@b.com", "CPR")
	excluded.Excluded = true

	candidates := []Candidate{
		cleanCandidate(2, "new@b.com", "CPR"),
		cleanCandidate(3, "existing@b.com", "CPR"),
		cleanCandidate(4, "fail@b.com", "CPR"),
		excluded,
		{RowIndex: 6, Email: "bad", Issues: []string{"Missing or invalid email"}},
	}

	outcomes, result := Reconcile(context.Background(), candidates, store)

	total := result.Imported + result.Updated + result.Skipped + len(result.Errors)
	if total != len(candidates) {
		t.Errorf("conservation violated: %d + %d + %d + %d = %d, want %d",
			result.Imported, result.Updated, result.Skipped, len(result.Errors), total, len(candidates))
	}
	if len(outcomes) != len(candidates) {
		t.Errorf("len(outcomes) = %d, want %d", len(outcomes), len(candidates))
	}
}

// TestReconcile_IdempotentReimport verifies that running the same clean
// batch twice creates no duplicates: the second run updates everything
// it imported the first time.
func TestReconcile_IdempotentReimport(t *testing.T) {
	store := newFakeStore()
	candidates := []Candidate{
		cleanCandidate(2, "a@b.com", "CPR"),
		cleanCandidate(3, "c@d.com", "Lifeguard"),
		cleanCandidate(4, "e@f.com", "First Aid"),
	}

	_, first := Reconcile(context.Background(), candidates, store)
	if first.Imported != 3 {
		t.Fatalf("first run Imported = %d, want 3", first.Imported)
	}

	_, second := Reconcile(context.Background(), candidates, store)
	if second.Imported != 0 {
		t.Errorf("second run Imported = %d, want 0", second.Imported)
	}
	if second.Updated != 3 {
		t.Errorf("second run Updated = %d, want 3", second.Updated)
	}
}

// TestReconcile_LastWriteWithinBatch verifies sequential semantics when
// two rows in one batch share a match key: the first inserts, the
// second sees the insert and updates.
func TestReconcile_LastWriteWithinBatch(t *testing.T) {
	store := newFakeStore()
	candidates := []Candidate{
		cleanCandidate(2, "a@b.com", "CPR"),
		cleanCandidate(3, "a@b.com", "CPR"),
	}

	outcomes, result := Reconcile(context.Background(), candidates, store)

	if result.Imported != 1 || result.Updated != 1 {
		t.Errorf("result = %+v, want 1 imported then 1 updated", result)
	}
	if outcomes[0].Action != ActionInserted || outcomes[1].Action != ActionUpdated {
		t.Errorf("outcomes = %v/%v, want inserted then updated", outcomes[0].Action, outcomes[1].Action)
	}
}

func TestReconcile_CancelledContext(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	excluded := cleanCandidate(4, "c@d.com", "CPR")
	excluded.Excluded = true

	candidates := []Candidate{
		cleanCandidate(2, "a@b.com", "CPR"),
		cleanCandidate(3, "b@b.com", "CPR"),
		excluded,
	}

	_, result := Reconcile(ctx, candidates, store)

	// Eligible rows become per-row errors; skips are still counted, and
	// the conservation law holds even for an interrupted run.
	if len(result.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want 2", len(result.Errors))
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	total := result.Imported + result.Updated + result.Skipped + len(result.Errors)
	if total != len(candidates) {
		t.Errorf("conservation violated on cancellation: total = %d, want %d", total, len(candidates))
	}
	if store.insertCalls != 0 {
		t.Errorf("insertCalls = %d, want 0 after cancellation", store.insertCalls)
	}
}

func TestReconcile_EmptyBatch(t *testing.T) {
	outcomes, result := Reconcile(context.Background(), nil, newFakeStore())
	if len(outcomes) != 0 {
		t.Errorf("len(outcomes) = %d, want 0", len(outcomes))
	}
	if result.Imported+result.Updated+result.Skipped+len(result.Errors) != 0 {
		t.Errorf("result = %+v, want all zero", result)
	}
}
