package eql

import (
	"errors"
	"fmt"
	"time"
)

// ErrQueryBuild is the sentinel wrapped by planner-stage failures: a
// syntactically valid query the planner refuses (OR, parens) or an invalid
// time range literal.
var ErrQueryBuild = errors.New("eql: query build error")

const dateLayout = "2006-01-02"

// Plan is what the Planner accepts: a conjunction of field predicates plus
// at most one time range.
type Plan struct {
	Predicates []FieldPred
	TimeRange  *TimeRangePred
}

// Build rejects OR and explicit parentheses (this EQL version is frozen to
// AND-of-predicates plus an optional single time range) and validates any
// time range's date literal against YYYY-MM-DD.
func Build(expr Expr) (Plan, error) {
	var plan Plan
	if err := flatten(expr, &plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func flatten(expr Expr, plan *Plan) error {
	switch e := expr.(type) {
	case FieldPred:
		plan.Predicates = append(plan.Predicates, e)
		return nil

	case TimeRangePred:
		if plan.TimeRange != nil {
			return fmt.Errorf("%w: only one time range is supported per query", ErrQueryBuild)
		}
		if _, err := time.Parse(dateLayout, e.Date); err != nil {
			return fmt.Errorf("%w: Invalid datetime format", ErrQueryBuild)
		}
		cp := e
		plan.TimeRange = &cp
		return nil

	case BinOp:
		if e.Op == "OR" {
			return fmt.Errorf("%w: OR is not supported in this version", ErrQueryBuild)
		}
		if err := flatten(e.Left, plan); err != nil {
			return err
		}
		return flatten(e.Right, plan)

	case Paren:
		return fmt.Errorf("%w: parenthesized sub-queries are not supported in this version", ErrQueryBuild)

	default:
		return fmt.Errorf("%w: unrecognized query node", ErrQueryBuild)
	}
}

// ParseAndBuild is the convenience entrypoint: lex+parse+plan in one call.
func ParseAndBuild(query string) (Plan, error) {
	expr, err := Parse(query)
	if err != nil {
		return Plan{}, err
	}
	return Build(expr)
}
