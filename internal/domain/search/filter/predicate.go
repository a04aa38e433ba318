package filter

import (
	"encoding/json"
	"sort"
)

// Op is a predicate operator.
type Op string

const (
	// OpEq matches a single value.
	OpEq Op = "$eq"
	// OpNe excludes a single value.
	OpNe Op = "$ne"
	// OpIn matches any value of a set.
	OpIn Op = "$in"
	// OpNotIn excludes every value of a set.
	OpNotIn Op = "$nin"
	// OpRange bounds a numeric field, inclusive on both ends.
	OpRange Op = "$range"
)

// Condition is the single constraint placed on one field.
type Condition struct {
	field  string
	op     Op
	value  Value
	values []Value
	min    *float64
	max    *float64
}

// Equals creates an equality condition.
func Equals(field string, v Value) Condition {
	return Condition{field: field, op: OpEq, value: v}
}

// NotEquals creates an exclusion condition.
func NotEquals(field string, v Value) Condition {
	return Condition{field: field, op: OpNe, value: v}
}

// In creates a set-membership condition. Values are deduplicated and sorted.
func In(field string, vals ...Value) Condition {
	return Condition{field: field, op: OpIn, values: canonicalSet(vals)}
}

// NotIn creates a set-exclusion condition. Values are deduplicated and sorted.
func NotIn(field string, vals ...Value) Condition {
	return Condition{field: field, op: OpNotIn, values: canonicalSet(vals)}
}

// Between creates an inclusive numeric range. Either bound may be nil.
func Between(field string, lo, hi *float64) Condition {
	return Condition{field: field, op: OpRange, min: copyFloat(lo), max: copyFloat(hi)}
}

// Field returns the constrained field name.
func (c Condition) Field() string { return c.field }

// Op returns the operator.
func (c Condition) Op() Op { return c.op }

// Value returns the operand of OpEq and OpNe.
func (c Condition) Value() Value { return c.value }

// Values returns the operand set of OpIn and OpNotIn.
func (c Condition) Values() []Value { return c.values }

// Min returns the lower bound of OpRange, or nil.
func (c Condition) Min() *float64 { return c.min }

// Max returns the upper bound of OpRange, or nil.
func (c Condition) Max() *float64 { return c.max }

func (c Condition) encode() map[string]any {
	switch c.op {
	case OpIn, OpNotIn:
		vals := make([]any, len(c.values))
		for i, v := range c.values {
			vals[i] = v.Any()
		}
		return map[string]any{string(c.op): vals}
	case OpRange:
		m := make(map[string]any, 2)
		if c.min != nil {
			m["$gte"] = *c.min
		}
		if c.max != nil {
			m["$lte"] = *c.max
		}
		return m
	default:
		return map[string]any{string(c.op): c.value.Any()}
	}
}

// Predicate is a conjunction of per-field conditions, at most one per field.
// The zero value is the empty predicate, which matches everything.
type Predicate struct {
	conds map[string]Condition
}

// NewPredicate builds a predicate. A later condition on the same field replaces
// an earlier one.
func NewPredicate(conds ...Condition) Predicate {
	if len(conds) == 0 {
		return Predicate{}
	}
	m := make(map[string]Condition, len(conds))
	for _, c := range conds {
		m[c.field] = c
	}
	return Predicate{conds: m}
}

// Len returns the number of constrained fields.
func (p Predicate) Len() int { return len(p.conds) }

// IsEmpty reports whether the predicate has no conditions.
func (p Predicate) IsEmpty() bool { return len(p.conds) == 0 }

// Get returns the condition on field.
func (p Predicate) Get(field string) (Condition, bool) {
	c, ok := p.conds[field]
	return c, ok
}

// Conditions returns all conditions sorted by field name.
func (p Predicate) Conditions() []Condition {
	out := make([]Condition, 0, len(p.conds))
	for _, c := range p.conds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].field < out[j].field })
	return out
}

// MarshalJSON emits the canonical form, e.g. {"price":{"$lte":10}}.
// encoding/json sorts object keys, and set operands are kept sorted, so two
// equal predicates always encode to the same bytes.
func (p Predicate) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.conds))
	for f, c := range p.conds {
		m[f] = c.encode()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err //nolint:wrapcheck // plain maps of scalars
	}
	return b, nil
}

// Canonical returns the canonical JSON as a string, "{}" when empty.
func (p Predicate) Canonical() string {
	b, err := p.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Map returns the canonical form as a generic JSON object.
func (p Predicate) Map() map[string]any {
	out := make(map[string]any, len(p.conds))
	for f, c := range p.conds {
		out[f] = c.encode()
	}
	return out
}

func canonicalSet(vals []Value) []Value {
	if len(vals) == 0 {
		return nil
	}
	out := make([]Value, len(vals))
	copy(out, vals)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
