package filter

import (
	"strings"
	"unicode"
)

// DefaultNumericFields are the catalog fields that accept min/max ranges.
var DefaultNumericFields = []string{"price", "rating_number", "average_rating"}

const negationPrefix = "not "

// Normalizer turns raw filters into a Predicate. It never fails: anything it
// cannot interpret is dropped, so a bad filter degrades to no constraint.
type Normalizer struct {
	numeric map[string]struct{}
}

// NewNormalizer creates a normalizer that accepts ranges on numericFields.
// With no fields given, DefaultNumericFields is used.
func NewNormalizer(numericFields ...string) *Normalizer {
	if len(numericFields) == 0 {
		numericFields = DefaultNumericFields
	}
	n := &Normalizer{numeric: make(map[string]struct{}, len(numericFields))}
	for _, f := range numericFields {
		n.numeric[f] = struct{}{}
	}
	return n
}

// IsNumeric reports whether field accepts range conditions.
func (n *Normalizer) IsNumeric(field string) bool {
	_, ok := n.numeric[field]
	return ok
}

// NormalizeMap parses and normalizes a decoded JSON object.
func (n *Normalizer) NormalizeMap(m map[string]any) Predicate {
	return n.Normalize(Parse(m))
}

// Normalize converts raw filters into a predicate with exactly one condition
// per surviving field. Fields absent from raw stay absent.
func (n *Normalizer) Normalize(raw RawFilters) Predicate {
	conds := make([]Condition, 0, len(raw))
	for field, r := range raw {
		if c, ok := n.condition(field, r); ok {
			conds = append(conds, c)
		}
	}
	return NewPredicate(conds...)
}

func (n *Normalizer) condition(field string, r Raw) (Condition, bool) {
	switch v := r.(type) {
	case Range:
		if n.IsNumeric(field) && (v.Min != nil || v.Max != nil) {
			return Between(field, v.Min, v.Max), true
		}
		if v.Operator != nil {
			return operatorCondition(field, *v.Operator)
		}
		return Condition{}, false
	case Operator:
		return operatorCondition(field, v)
	case Scalar:
		return scalarCondition(field, v.Value)
	case List:
		if len(v.Values) == 0 {
			return Condition{}, false
		}
		return In(field, v.Values...), true
	}
	return Condition{}, false
}

// operatorCondition resolves competing operators: an empty set does not count,
// later operators in NotIn, In, NotEquals, Equals order lose.
func operatorCondition(field string, op Operator) (Condition, bool) {
	switch {
	case len(op.NotIn) > 0:
		return NotIn(field, op.NotIn...), true
	case len(op.In) > 0:
		return In(field, op.In...), true
	case op.NotEquals != nil && !emptyText(*op.NotEquals):
		return NotEquals(field, *op.NotEquals), true
	case op.Equals != nil && !emptyText(*op.Equals):
		return Equals(field, *op.Equals), true
	}
	return Condition{}, false
}

func scalarCondition(field string, v Value) (Condition, bool) {
	if v.Kind() != KindString {
		return Equals(field, v), true
	}

	s := strings.TrimLeftFunc(v.Str(), unicode.IsSpace)
	if len(s) >= len(negationPrefix) && strings.EqualFold(s[:len(negationPrefix)], negationPrefix) {
		rest := strings.TrimSpace(s[len(negationPrefix):])
		if rest == "" {
			return Condition{}, false
		}
		return NotEquals(field, String(rest)), true
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Condition{}, false
	}
	return Equals(field, String(s)), true
}

func emptyText(v Value) bool {
	return v.Kind() == KindString && strings.TrimSpace(v.Str()) == ""
}
