package filter

// Raw is one weakly-typed filter value as emitted by the upstream extractor.
// It is one of Scalar, Range, Operator or List.
type Raw interface {
	isRaw()
}

// Scalar is a bare string, number or boolean.
type Scalar struct {
	Value Value
}

// Range is a mapping with min/max bounds. Either bound may be absent.
// Operator holds any operator keys found next to the bounds; it applies
// when the field is not numeric or no bound survives.
type Range struct {
	Min      *float64
	Max      *float64
	Operator *Operator
}

// Operator is a mapping with explicit operators. When several are present the
// normalizer picks the first usable one in the order NotIn, In, NotEquals, Equals.
type Operator struct {
	Equals    *Value
	NotEquals *Value
	In        []Value
	NotIn     []Value
}

// List is a bare array of scalars.
type List struct {
	Values []Value
}

func (Scalar) isRaw()   {}
func (Range) isRaw()    {}
func (Operator) isRaw() {}
func (List) isRaw()     {}

// RawFilters maps field names to their raw values.
type RawFilters map[string]Raw

// Operator spellings accepted in mappings. The $-prefixed forms are the ones
// Predicate.MarshalJSON emits, so a serialized predicate parses back to itself.
var (
	minKeys   = []string{"min", "$gte", "gte"}
	maxKeys   = []string{"max", "$lte", "lte"}
	eqKeys    = []string{"$eq", "eq", "equals"}
	neKeys    = []string{"$ne", "ne", "not-equals", "not_equals"}
	inKeys    = []string{"$in", "in", "in-list", "in_list"}
	notInKeys = []string{"$nin", "nin", "not-in-list", "not_in_list"}
)

// Parse classifies every field of a decoded JSON object. Fields whose value
// cannot be classified (null, nested objects without known keys) are left out.
func Parse(m map[string]any) RawFilters {
	out := make(RawFilters, len(m))
	for field, v := range m {
		if field == "" {
			continue
		}
		if r, ok := parseValue(v); ok {
			out[field] = r
		}
	}
	return out
}

func parseValue(v any) (Raw, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return parseMapping(t)
	case []any:
		return List{Values: scalars(t)}, true
	case []string:
		vals := make([]Value, 0, len(t))
		for _, s := range t {
			vals = append(vals, String(s))
		}
		return List{Values: vals}, true
	case []float64:
		vals := make([]Value, 0, len(t))
		for _, f := range t {
			if val, ok := finite(f); ok {
				vals = append(vals, val)
			}
		}
		return List{Values: vals}, true
	}
	if val, ok := scalarOf(v); ok {
		return Scalar{Value: val}, true
	}
	return nil, false
}

// parseMapping gives range keys precedence over operator keys. Operators next
// to range keys are kept on the Range.
func parseMapping(m map[string]any) (Raw, bool) {
	op, hasOp := parseOperator(m)
	if hasAny(m, minKeys) || hasAny(m, maxKeys) {
		var r Range
		r.Min, _ = boundOf(first(m, minKeys))
		r.Max, _ = boundOf(first(m, maxKeys))
		if hasOp {
			r.Operator = &op
		}
		return r, true
	}
	if !hasOp {
		return nil, false
	}
	return op, true
}

func parseOperator(m map[string]any) (Operator, bool) {
	var op Operator
	found := false
	if raw, ok := lookup(m, eqKeys); ok {
		found = true
		if val, ok := scalarOf(raw); ok {
			op.Equals = &val
		}
	}
	if raw, ok := lookup(m, neKeys); ok {
		found = true
		if val, ok := scalarOf(raw); ok {
			op.NotEquals = &val
		}
	}
	if raw, ok := lookup(m, inKeys); ok {
		found = true
		op.In = listOf(raw)
	}
	if raw, ok := lookup(m, notInKeys); ok {
		found = true
		op.NotIn = listOf(raw)
	}
	return op, found
}

func listOf(v any) []Value {
	switch t := v.(type) {
	case []any:
		return scalars(t)
	case []string:
		vals := make([]Value, 0, len(t))
		for _, s := range t {
			vals = append(vals, String(s))
		}
		return vals
	}
	return nil
}

func scalars(items []any) []Value {
	vals := make([]Value, 0, len(items))
	for _, it := range items {
		if val, ok := scalarOf(it); ok {
			vals = append(vals, val)
		}
	}
	return vals
}

func hasAny(m map[string]any, keys []string) bool {
	_, ok := lookup(m, keys)
	return ok
}

func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func first(m map[string]any, keys []string) any {
	v, _ := lookup(m, keys)
	return v
}
