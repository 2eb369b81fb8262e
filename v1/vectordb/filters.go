package vectordb

import "time"

// FilterCondition is implemented by every condition type.
// Each backend converts conditions to its native filter format.
type FilterCondition interface {
	IsFilterCondition()
}

// FilterSet supports Must (AND), Should (OR) and MustNot (NOT) clauses.
type FilterSet struct {
	Must    *ConditionSet
	Should  *ConditionSet
	MustNot *ConditionSet
}

// ConditionSet holds the conditions of a single clause.
type ConditionSet struct {
	Conditions []FilterCondition
}

// Empty reports whether fs has no conditions at all.
func (fs *FilterSet) Empty() bool {
	if fs == nil {
		return true
	}
	return fs.Must.len() == 0 && fs.Should.len() == 0 && fs.MustNot.len() == 0
}

func (cs *ConditionSet) len() int {
	if cs == nil {
		return 0
	}
	return len(cs.Conditions)
}

// MatchCondition is an exact match (field = value). Value is a string, bool
// or integer.
type MatchCondition struct {
	Field string
	Value any
}

func (c *MatchCondition) IsFilterCondition() {}

// MatchAnyCondition matches when the field equals one of Values (IN).
type MatchAnyCondition struct {
	Field  string
	Values []any
}

func (c *MatchAnyCondition) IsFilterCondition() {}

// MatchExceptCondition matches when the field equals none of Values (NOT IN).
type MatchExceptCondition struct {
	Field  string
	Values []any
}

func (c *MatchExceptCondition) IsFilterCondition() {}

// TimeRange bounds a datetime field. Nil bounds are open.
type TimeRange struct {
	Gt  *time.Time
	Gte *time.Time
	Lt  *time.Time
	Lte *time.Time
}

// TimeRangeCondition filters a datetime payload field.
type TimeRangeCondition struct {
	Field string
	Range TimeRange
}

func (c *TimeRangeCondition) IsFilterCondition() {}
