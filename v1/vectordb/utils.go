package vectordb

import (
	"fmt"
	"sort"
)

// ── FilterSet Constructors ───────────────────────────────────────────────────

// NewFilterSet creates a FilterSet from Must, Should and MustNot clauses.
func NewFilterSet(clauses ...func(*FilterSet)) *FilterSet {
	fs := &FilterSet{}
	for _, clause := range clauses {
		clause(fs)
	}
	return fs
}

// Must appends conditions that all have to match.
func Must(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) {
		fs.Must = appendConditions(fs.Must, conditions)
	}
}

// Should appends conditions of which at least one has to match.
func Should(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) {
		fs.Should = appendConditions(fs.Should, conditions)
	}
}

// MustNot appends conditions none of which may match.
func MustNot(conditions ...FilterCondition) func(*FilterSet) {
	return func(fs *FilterSet) {
		fs.MustNot = appendConditions(fs.MustNot, conditions)
	}
}

func appendConditions(cs *ConditionSet, conditions []FilterCondition) *ConditionSet {
	if cs == nil {
		cs = &ConditionSet{}
	}
	cs.Conditions = append(cs.Conditions, conditions...)
	return cs
}

// WithOwner returns a copy of fs whose Must clause also requires owner.
// The caller's set is never mutated.
func WithOwner(fs *FilterSet, owner string) *FilterSet {
	out := &FilterSet{}
	if fs != nil {
		out.Should = fs.Should
		out.MustNot = fs.MustNot
		if fs.Must != nil {
			out.Must = &ConditionSet{Conditions: append([]FilterCondition(nil), fs.Must.Conditions...)}
		}
	}
	out.Must = appendConditions(out.Must, []FilterCondition{NewMatch(FieldOwner, owner)})
	return out
}

// ── Condition Constructors ───────────────────────────────────────────────────

// NewMatch creates an exact match condition.
func NewMatch(field string, value any) *MatchCondition {
	return &MatchCondition{Field: field, Value: value}
}

// NewMatchAny creates an IN condition. Values must share one type.
func NewMatchAny(field string, values ...any) *MatchAnyCondition {
	validateHomogeneousTypes(values)
	return &MatchAnyCondition{Field: field, Values: values}
}

// NewMatchExcept creates a NOT IN condition. Values must share one type.
func NewMatchExcept(field string, values ...any) *MatchExceptCondition {
	validateHomogeneousTypes(values)
	return &MatchExceptCondition{Field: field, Values: values}
}

// NewTimeRange creates a datetime range condition.
func NewTimeRange(field string, r TimeRange) *TimeRangeCondition {
	return &TimeRangeCondition{Field: field, Range: r}
}

// validateHomogeneousTypes panics on mixed value types; that is a programming
// error, not runtime input.
func validateHomogeneousTypes(values []any) {
	if len(values) <= 1 {
		return
	}
	expected := typeCategory(values[0])
	if expected == "" {
		panic(fmt.Sprintf("vectordb: unsupported value type: %T", values[0]))
	}
	for i, v := range values[1:] {
		actual := typeCategory(v)
		if actual == "" {
			panic(fmt.Sprintf("vectordb: unsupported value type at index %d: %T", i+1, v))
		}
		if actual != expected {
			panic(fmt.Sprintf("vectordb: mixed types not allowed: expected %s but got %s at index %d", expected, actual, i+1))
		}
	}
}

func typeCategory(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case int, int64, uint64, float64:
		return "numeric"
	case bool:
		return "boolean"
	}
	return ""
}

// ── Result Guard ─────────────────────────────────────────────────────────────

// Normalize drops matches below minScore, orders the rest by descending score
// (newer CreatedAt first, then ID, on ties) and caps the result at topK.
// The input slice is reordered in place.
func Normalize(matches []Match, topK int, minScore float32) []Match {
	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= minScore {
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if topK >= 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
