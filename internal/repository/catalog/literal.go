package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errSyntax = errors.New("invalid literal")

// parseList reads a list column written either as JSON or as a Python
// literal such as ['a', "b's"]. Non-string items are rendered as text.
func parseList(s string) ([]string, error) {
	if isNone(s) {
		return nil, nil
	}
	v, err := parseLiteral(s)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: not a list", errSyntax)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, text(it))
	}
	return out, nil
}

// parseDict reads a mapping column; values are rendered as text.
func parseDict(s string) (map[string]string, error) {
	if isNone(s) {
		return map[string]string{}, nil
	}
	v, err := parseLiteral(s)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: not a mapping", errSyntax)
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = text(val)
	}
	return out, nil
}

func isNone(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "none")
}

func parseLiteral(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v, nil
	}
	p := &literalParser{src: s}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%w: trailing data at %d", errSyntax, p.pos)
	}
	return v, nil
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// literalParser handles the subset of Python literal syntax found in catalog
// exports: strings, numbers, True/False/None, lists, tuples and dicts.
type literalParser struct {
	src string
	pos int
}

func (p *literalParser) value() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("%w: unexpected end", errSyntax)
	}
	switch c := p.src[p.pos]; {
	case c == '[':
		return p.sequence(']')
	case c == '(':
		return p.sequence(')')
	case c == '{':
		return p.dict()
	case c == '\'' || c == '"':
		return p.str()
	default:
		return p.bare()
	}
}

func (p *literalParser) sequence(closer byte) ([]any, error) {
	p.pos++ // opener
	out := []any{}
	for {
		p.skipSpace()
		if p.consume(closer) {
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(closer) {
			return out, nil
		}
		return nil, fmt.Errorf("%w: expected , or %c at %d", errSyntax, closer, p.pos)
	}
}

func (p *literalParser) dict() (map[string]any, error) {
	p.pos++ // {
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.consume('}') {
			return out, nil
		}
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, fmt.Errorf("%w: expected : at %d", errSyntax, p.pos)
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[text(k)] = v
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			return out, nil
		}
		return nil, fmt.Errorf("%w: expected , or } at %d", errSyntax, p.pos)
	}
}

func (p *literalParser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\' && p.pos+1 < len(p.src):
			p.pos++
			b.WriteByte(unescape(p.src[p.pos]))
		default:
			b.WriteByte(c)
		}
		p.pos++
	}
	return "", fmt.Errorf("%w: unterminated string", errSyntax)
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func (p *literalParser) bare() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(",:]})", rune(p.src[p.pos])) {
		p.pos++
	}
	tok := strings.TrimSpace(p.src[start:p.pos])
	switch tok {
	case "None":
		return nil, nil
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errSyntax, tok)
	}
	return f, nil
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) consume(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}
