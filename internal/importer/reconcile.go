package importer

import (
	"context"
	"fmt"
	"strings"
)

// Reconcile decides, per candidate, whether to insert a new record,
// update an existing one, or skip, and aggregates the counts.
//
// Ineligible candidates (operator-excluded or carrying validation
// issues) are counted as skipped without ever touching the store.
// Eligible candidates are processed sequentially in file order, which is
// what guarantees last-write-wins when two rows in the same batch share
// a match key. A store failure on one candidate is captured as a per-row
// error and processing continues: a single conflicting row must never
// take down the whole batch.
//
// A cancelled or expired context does not abort the loop either; each
// not-yet-attempted eligible candidate is recorded as errored, so the
// invariant Imported + Updated + Skipped + len(Errors) == len(candidates)
// holds even for interrupted runs. Rows already persisted stay persisted;
// there is no cross-record transaction and no compensating rollback.
func Reconcile(ctx context.Context, candidates []Candidate, store RecordStore) ([]Outcome, Result) {
	return reconcile(ctx, candidates, store, nil)
}

// reconcile is Reconcile with an optional per-outcome callback, used by
// the service to publish progress as rows complete.
func reconcile(ctx context.Context, candidates []Candidate, store RecordStore, notify func(Outcome)) ([]Outcome, Result) {
	outcomes := make([]Outcome, 0, len(candidates))
	result := Result{Errors: []string{}}

	record := func(o Outcome) {
		outcomes = append(outcomes, o)
		if notify != nil {
			notify(o)
		}
	}
	fail := func(c Candidate, format string, args ...any) {
		msg := fmt.Sprintf("row %d (%s): %s", c.RowIndex, c.Email, fmt.Sprintf(format, args...))
		result.Errors = append(result.Errors, msg)
		record(Outcome{RowIndex: c.RowIndex, Email: c.Email, Action: ActionErrored, Err: msg})
	}

	for _, c := range candidates {
		if !c.Eligible() {
			result.Skipped++
			record(Outcome{RowIndex: c.RowIndex, Email: c.Email, Action: ActionSkipped})
			continue
		}

		if err := ctx.Err(); err != nil {
			fail(c, "not attempted: %v", err)
			continue
		}

		matchName := strings.ToLower(c.MatchName())

		existing, err := store.FindMatch(ctx, c.Email, matchName)
		if err != nil {
			fail(c, "lookup failed: %v", err)
			continue
		}

		if existing != nil {
			if err := store.Update(ctx, existing.ID, c); err != nil {
				fail(c, "update failed: %v", err)
				continue
			}
			result.Updated++
			record(Outcome{RowIndex: c.RowIndex, Email: c.Email, Action: ActionUpdated})
			continue
		}

		if err := store.Insert(ctx, c); err != nil {
			fail(c, "insert failed: %v", err)
			continue
		}
		result.Imported++
		record(Outcome{RowIndex: c.RowIndex, Email: c.Email, Action: ActionInserted})
	}

	return outcomes, result
}
