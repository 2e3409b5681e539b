package expr

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TimeSnapshot pins "now" for the duration of one evaluation pass so that
// @time:now() helpers and relative comparisons are stable across every
// record processed in the same pipeline run.
type TimeSnapshot struct {
	Now time.Time
}

// Evaluator evaluates parsed expressions against FieldAccessor records. It
// owns a regex cache since the same Condition is evaluated once per record
// and recompiling on every call would dominate large channel lists.
type Evaluator struct {
	Time TimeSnapshot

	mu          sync.Mutex
	reCache     map[string]*regexp.Regexp
	preFilterCache map[string]regexPreFilter
}

// NewEvaluator builds an Evaluator pinned to the given snapshot time.
func NewEvaluator(snapshot TimeSnapshot) *Evaluator {
	return &Evaluator{
		Time:           snapshot,
		reCache:        make(map[string]*regexp.Regexp),
		preFilterCache: make(map[string]regexPreFilter),
	}
}

func (ev *Evaluator) compile(pattern string) (*regexp.Regexp, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if re, ok := ev.reCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	ev.reCache[pattern] = re
	return re, nil
}

func (ev *Evaluator) preFilter(pattern string) regexPreFilter {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if f, ok := ev.preFilterCache[pattern]; ok {
		return f
	}
	f := buildRegexPreFilter(pattern)
	ev.preFilterCache[pattern] = f
	return f
}

// Eval evaluates e against rec, returning the boolean result.
func (ev *Evaluator) Eval(e Expr, rec FieldAccessor) (bool, error) {
	switch v := e.(type) {
	case BinExpr:
		left, err := ev.Eval(v.Left, rec)
		if err != nil {
			return false, err
		}
		// Short-circuit like the reference implementation: AND skips the
		// right side once the left side is false, OR once it is true.
		if v.Op == BoolAnd && !left {
			return false, nil
		}
		if v.Op == BoolOr && left {
			return true, nil
		}
		return ev.Eval(v.Right, rec)
	case Condition:
		return ev.evalCondition(v, rec)
	default:
		return false, nil
	}
}

func (ev *Evaluator) evalCondition(c Condition, rec FieldAccessor) (bool, error) {
	value, _ := rec.Field(c.FieldID, c.Field)

	base, negated := isNegated(c.Op)
	result, err := compare(base, value, c.Literal, ev)
	if err != nil {
		return false, err
	}
	if negated {
		return !result, nil
	}
	return result, nil
}

func compare(op Op, value, literal string, ev *Evaluator) (bool, error) {
	switch op {
	case OpEquals:
		return strings.EqualFold(value, literal), nil
	case OpContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(literal)), nil
	case OpStartsWith:
		return strings.HasPrefix(strings.ToLower(value), strings.ToLower(literal)), nil
	case OpEndsWith:
		return strings.HasSuffix(strings.ToLower(value), strings.ToLower(literal)), nil
	case OpMatches:
		if !ev.preFilter(literal).MayMatch(value) {
			return false, nil
		}
		re, err := ev.compile(literal)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	case OpGreater, OpLess, OpGreaterEq, OpLessEq:
		return compareOrdered(op, value, literal), nil
	default:
		return false, nil
	}
}

// compareOrdered compares numerically when both sides parse as numbers,
// falling back to case-insensitive lexicographic comparison otherwise.
func compareOrdered(op Op, value, literal string) bool {
	vNum, vErr := strconv.ParseFloat(value, 64)
	lNum, lErr := strconv.ParseFloat(literal, 64)

	var cmp int
	if vErr == nil && lErr == nil {
		switch {
		case vNum < lNum:
			cmp = -1
		case vNum > lNum:
			cmp = 1
		default:
			cmp = 0
		}
	} else {
		cmp = strings.Compare(strings.ToLower(value), strings.ToLower(literal))
	}

	switch op {
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	case OpGreaterEq:
		return cmp >= 0
	case OpLessEq:
		return cmp <= 0
	}
	return false
}
