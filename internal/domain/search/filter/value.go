package filter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind is the dynamic type of a scalar filter value.
type Kind uint8

const (
	// KindString is a text value matched against TAG fields.
	KindString Kind = iota + 1
	// KindNumber is a numeric value matched against NUMERIC fields.
	KindNumber
	// KindBool is a boolean flag matched as a "true"/"false" tag.
	KindBool
)

// Value is a scalar operand of a predicate.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// String creates a text value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// Str returns the text payload.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload.
func (v Value) Num() float64 { return v.num }

// Boolean returns the boolean payload.
func (v Value) Boolean() bool { return v.b }

// Text renders the value the way it is stored in a TAG field.
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// Any returns the Go value used for JSON encoding.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return v.str
	}
}

func (v Value) less(o Value) bool {
	if v.kind != o.kind {
		return v.kind < o.kind
	}
	switch v.kind {
	case KindNumber:
		return v.num < o.num
	case KindBool:
		return !v.b && o.b
	default:
		return v.str < o.str
	}
}

// scalarOf converts a decoded JSON scalar into a Value.
// Maps, slices, nil and non-finite numbers are rejected.
func scalarOf(x any) (Value, bool) {
	switch t := x.(type) {
	case string:
		return String(t), true
	case bool:
		return Bool(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, false
		}
		return finite(f)
	}
	if f, ok := numberOf(x); ok {
		return finite(f)
	}
	return Value{}, false
}

func finite(f float64) (Value, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, false
	}
	return Number(f), true
}

func numberOf(x any) (float64, bool) {
	switch t := x.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

// boundOf reads a range bound. Numeric strings are accepted because the
// extractor sometimes quotes numbers.
func boundOf(x any) (*float64, bool) {
	var f float64
	switch t := x.(type) {
	case nil:
		return nil, false
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, false
		}
		f = parsed
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		n, ok := numberOf(x)
		if !ok {
			return nil, false
		}
		f = n
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}
