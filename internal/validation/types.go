package validation

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Value is a JSON field kept raw so handlers can apply the loose typing
// browser clients rely on: numbers sent as strings, strings or arrays in the
// same field, falsy values treated as missing.
type Value struct {
	raw json.RawMessage
}

func (v *Value) UnmarshalJSON(b []byte) error {
	v.raw = append(v.raw[:0], b...)
	return nil
}

// Raw builds a Value from a JSON literal. Used by tests and callers that
// already hold decoded input.
func Raw(s string) Value { return Value{raw: json.RawMessage(s)} }

func (v Value) kind() byte {
	b := bytes.TrimSpace(v.raw)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// Present reports whether the value is truthy: not missing, null, false,
// zero or the empty string. Empty arrays and objects are present.
func (v Value) Present() bool {
	switch k := v.kind(); k {
	case 0, 'n', 'f':
		return false
	case 't', '[', '{':
		return true
	case '"':
		s, _ := v.Str()
		return s != ""
	default:
		f, ok := v.number()
		return ok && f != 0 && !math.IsNaN(f)
	}
}

// Str returns the value when it is a JSON string.
func (v Value) Str() (string, bool) {
	if v.kind() != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Text renders any scalar as text: strings unquoted, numbers and booleans
// as written.
func (v Value) Text() string {
	if s, ok := v.Str(); ok {
		return s
	}
	return string(bytes.TrimSpace(v.raw))
}

// Array returns the elements when the value is a JSON array.
func (v Value) Array() ([]Value, bool) {
	if v.kind() != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(v.raw, &elems); err != nil {
		return nil, false
	}
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = Value{raw: e}
	}
	return out, true
}

func (v Value) number() (float64, bool) {
	k := v.kind()
	if k != '-' && (k < '0' || k > '9') {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(bytes.TrimSpace(v.raw)), 64)
	return f, err == nil
}

// Int returns the value when it is a JSON number without a fractional part.
func (v Value) Int() (int, bool) {
	f, ok := v.number()
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// LeadingInt reads an integer prefix from a number or a numeric string,
// ignoring whatever follows it: "12", 12.7 and "12 people" all give 12.
func (v Value) LeadingInt() (int, bool) {
	s := strings.TrimSpace(v.Text())
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Clean trims surrounding space and truncates to n runes.
func Clean(s string, n int) string {
	return Truncate(strings.TrimSpace(s), n)
}
