package validator

import (
	"strings"

	"github.com/corisec/cori/internal/config"
)

// transitionCheck evaluates an update's only_when disjunction against the
// current row and proposed new values, per spec.md §4.4 step 5. It
// returns whether at least one conjunctive entry held, and — when none
// did — the entry with the most matching predicates, for diagnostic
// purposes.
func transitionCheck(onlyWhen config.OnlyWhen, old, proposed map[string]any) (ok bool, closestMatches int, closest config.ConditionSet) {
	if len(onlyWhen) == 0 {
		return true, 0, nil
	}
	for _, set := range onlyWhen {
		matches := 0
		allHold := true
		for _, pred := range set {
			if predicateHolds(pred, old, proposed) {
				matches++
			} else {
				allHold = false
			}
		}
		if allHold {
			return true, len(set), set
		}
		if matches > closestMatches {
			closestMatches = matches
			closest = set
		}
	}
	return false, closestMatches, closest
}

func predicateHolds(pred config.Predicate, old, proposed map[string]any) bool {
	lhs, lhsOK := resolveSubject(pred.Subject, pred.Column, old, proposed)
	if pred.Operator == config.OpIsNull {
		return !lhsOK || lhs == nil
	}
	if pred.Operator == config.OpNotNull {
		return lhsOK && lhs != nil
	}
	if !lhsOK || lhs == nil {
		return false
	}

	rhs, rhsOK := resolveRValue(pred.RValue, old, proposed)
	if !rhsOK {
		return false
	}

	switch pred.Operator {
	case config.OpEquals:
		return compareEqual(lhs, rhs)
	case config.OpNotEquals:
		return !compareEqual(lhs, rhs)
	case config.OpGT, config.OpGE, config.OpLT, config.OpLE:
		return compareOrdered(lhs, rhs, pred.Operator)
	case config.OpIn:
		return containsAny(rhs, lhs)
	case config.OpNotIn:
		return !containsAny(rhs, lhs)
	case config.OpStartsWith:
		ls, lok := lhs.(string)
		rs, rok := rhs.(string)
		return lok && rok && strings.HasPrefix(ls, rs)
	default:
		return false
	}
}

// resolveSubject resolves old.<column> or new.<column>. new.X falls back
// to old.X when the field is absent from the proposed payload, per
// spec.md §4.4.
func resolveSubject(subject config.Subject, column string, old, proposed map[string]any) (any, bool) {
	switch subject {
	case config.SubjectOld:
		v, ok := old[column]
		return v, ok
	case config.SubjectNew:
		if v, ok := proposed[column]; ok {
			return v, true
		}
		v, ok := old[column]
		return v, ok
	default:
		return nil, false
	}
}

func resolveRValue(rv config.RValue, old, proposed map[string]any) (any, bool) {
	if !rv.IsRef {
		return rv.Literal, true
	}
	return resolveSubject(rv.RefSide, rv.RefColumn, old, proposed)
}

func compareEqual(a, b any) bool {
	an, aok := asFloat(a)
	bn, bok := asFloat(b)
	if aok && bok {
		return an == bn
	}
	return a == b
}

func compareOrdered(a, b any, op config.Operator) bool {
	an, aok := asFloat(a)
	bn, bok := asFloat(b)
	if aok && bok {
		switch op {
		case config.OpGT:
			return an > bn
		case config.OpGE:
			return an >= bn
		case config.OpLT:
			return an < bn
		case config.OpLE:
			return an <= bn
		}
		return false
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch op {
		case config.OpGT:
			return as > bs
		case config.OpGE:
			return as >= bs
		case config.OpLT:
			return as < bs
		case config.OpLE:
			return as <= bs
		}
	}
	return false
}

func containsAny(set any, value any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if compareEqual(item, value) {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
