package eql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/borelli28/siembackend/internal/logstore"
	"github.com/borelli28/siembackend/internal/normalize"
)

// ErrQuery wraps executor-level failures that should fail the whole query,
// as opposed to a single row mismatch (never a query failure per spec).
var ErrQuery = fmt.Errorf("eql: query error")

// Streamer is the subset of logstore.Store the executor needs, kept as an
// interface so unit tests can substitute an in-memory fake.
type Streamer interface {
	StreamRange(ctx context.Context, accountID string, start, end *time.Time, fn func(logstore.StoredLog) error) error
}

// Execute runs plan against every candidate StoredLog for accountID,
// streaming rows one at a time to bound memory, and returns the rows where
// every predicate holds. A single row's JSON or field-type error yields a
// non-match for that row, never a query failure.
func Execute(ctx context.Context, store Streamer, accountID string, plan Plan) ([]logstore.StoredLog, error) {
	var matches []logstore.StoredLog

	err := store.StreamRange(ctx, accountID, nil, nil, func(sl logstore.StoredLog) error {
		var event map[string]interface{}
		if err := json.Unmarshal([]byte(sl.LogData), &event); err != nil {
			return nil // malformed row: non-match, not a query failure
		}
		if rowMatches(event, plan) {
			matches = append(matches, sl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	return matches, nil
}

func rowMatches(event map[string]interface{}, plan Plan) bool {
	for _, pred := range plan.Predicates {
		if !compare(normalize.ResolveField(event, pred.Field), pred.Op, pred.Value) {
			return false
		}
	}
	if plan.TimeRange != nil {
		actual := normalize.ResolveField(event, plan.TimeRange.Field)
		if !compare(actual, plan.TimeRange.Op, plan.TimeRange.Date) {
			return false
		}
	}
	return true
}

// compare implements the executor's comparison rule: "=" and "!=" are
// textual equality/inequality; "<" and ">" are lexicographic.
func compare(actual, op, expected string) bool {
	switch op {
	case "=":
		return actual == expected
	case "!=":
		return actual != expected
	case ">":
		return actual > expected
	case "<":
		return actual < expected
	default:
		return false
	}
}
