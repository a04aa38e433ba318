package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/shopsearch/internal/db"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
)

// buildFilter translates a predicate into an FT.SEARCH pre-filter.
// ok is false when some condition can never match, in which case the query
// need not be sent at all.
func buildFilter(p filter.Predicate, schema map[string]db.IndexFieldType) (query string, ok bool) {
	conds := p.Conditions()
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		part, ok := buildCondition(c, fieldType(c, schema))
		if !ok {
			return "", false
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " "), true
}

// unknownField marks a field absent from the schema.
const unknownField db.IndexFieldType = -1

func fieldType(c filter.Condition, schema map[string]db.IndexFieldType) db.IndexFieldType {
	if schema != nil {
		if t, ok := schema[c.Field()]; ok {
			return t
		}
		return unknownField
	}
	switch c.Op() {
	case filter.OpRange:
		return db.IndexFieldNumeric
	case filter.OpIn, filter.OpNotIn:
		if len(c.Values()) > 0 && c.Values()[0].Kind() == filter.KindNumber {
			return db.IndexFieldNumeric
		}
		return db.IndexFieldTag
	default:
		if c.Value().Kind() == filter.KindNumber {
			return db.IndexFieldNumeric
		}
		return db.IndexFieldTag
	}
}

// buildCondition renders one condition. An empty string with ok=true means
// the condition holds for every document; ok=false means it holds for none.
func buildCondition(c filter.Condition, typ db.IndexFieldType) (string, bool) {
	positive := c.Op() == filter.OpEq || c.Op() == filter.OpIn || c.Op() == filter.OpRange

	var expr string
	switch typ {
	case db.IndexFieldTag:
		expr = tagExpr(c)
	case db.IndexFieldNumeric:
		expr = numericExpr(c)
	}

	switch {
	case expr == "" && positive:
		return "", false
	case expr == "":
		return "", true
	case positive:
		return expr, true
	default:
		return "-" + expr, true
	}
}

func tagExpr(c filter.Condition) string {
	switch c.Op() {
	case filter.OpEq, filter.OpNe:
		return tagQuery(c.Field(), []filter.Value{c.Value()})
	case filter.OpIn, filter.OpNotIn:
		return tagQuery(c.Field(), c.Values())
	}
	return ""
}

func tagQuery(field string, vals []filter.Value) string {
	escaped := make([]string, 0, len(vals))
	for _, v := range vals {
		if t := v.Text(); t != "" {
			escaped = append(escaped, tagEscaper.Replace(t))
		}
	}
	if len(escaped) == 0 {
		return ""
	}
	return fmt.Sprintf("@%s:{%s}", field, strings.Join(escaped, " | "))
}

func numericExpr(c filter.Condition) string {
	switch c.Op() {
	case filter.OpRange:
		return rangeQuery(c.Field(), c.Min(), c.Max())
	case filter.OpEq, filter.OpNe:
		if n, ok := numeric(c.Value()); ok {
			return rangeQuery(c.Field(), &n, &n)
		}
	case filter.OpIn, filter.OpNotIn:
		parts := make([]string, 0, len(c.Values()))
		for _, v := range c.Values() {
			if n, ok := numeric(v); ok {
				parts = append(parts, rangeQuery(c.Field(), &n, &n))
			}
		}
		switch len(parts) {
		case 0:
			return ""
		case 1:
			return parts[0]
		default:
			return "(" + strings.Join(parts, " | ") + ")"
		}
	}
	return ""
}

// numeric reads a number operand; quoted numbers count.
func numeric(v filter.Value) (float64, bool) {
	switch v.Kind() {
	case filter.KindNumber:
		return v.Num(), true
	case filter.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
		return f, err == nil
	}
	return 0, false
}

func rangeQuery(field string, lo, hi *float64) string {
	minBound, maxBound := "-inf", "+inf"
	if lo != nil {
		minBound = strconv.FormatFloat(*lo, 'g', -1, 64)
	}
	if hi != nil {
		maxBound = strconv.FormatFloat(*hi, 'g', -1, 64)
	}
	return fmt.Sprintf("@%s:[%s %s]", field, minBound, maxBound)
}

var tagEscaper = strings.NewReplacer(
	"\\", "\\\\",
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)
