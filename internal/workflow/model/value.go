package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind is the declared type of a condition rule field.
type ValueKind string

const (
	ValueKindString ValueKind = "string"
	ValueKindNumber ValueKind = "number"
	ValueKindBool   ValueKind = "bool"
	ValueKindDate   ValueKind = "date"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"}

// Value is a small typed union over the closed set of comparable rule value
// types. Static compare values are resolved into a Value once at condition
// load time; context values are coerced at evaluation time. The comparison
// operators are total over this type.
type Value struct {
	Kind ValueKind
	Null bool

	Str  string
	Num  float64
	Bool bool
	Time time.Time
	List []Value // Populated for IN / NOT IN right-hand sides
}

// NullValue is the Value representing an absent field.
func NullValue() Value {
	return Value{Null: true}
}

// CoerceValue converts an arbitrary context value (employee field, jsonb
// payload entry, balance figure) into a Value of the declared kind.
func CoerceValue(raw any, kind ValueKind) (Value, error) {
	if raw == nil {
		return NullValue(), nil
	}
	switch kind {
	case ValueKindNumber:
		n, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueKindNumber, Num: n}, nil
	case ValueKindBool:
		b, err := toBool(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueKindBool, Bool: b}, nil
	case ValueKindDate:
		t, err := toTime(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueKindDate, Time: t}, nil
	default:
		return Value{Kind: ValueKindString, Str: fmt.Sprintf("%v", raw)}, nil
	}
}

// ParseStaticValue resolves a rule's static compare value for the given kind
// and operator. For IN / NOT IN the text is treated as a comma-separated list
// and each element is parsed with the declared kind.
func ParseStaticValue(text string, kind ValueKind, op Operator) (Value, error) {
	if op == OperatorIn || op == OperatorNotIn {
		parts := strings.Split(text, ",")
		list := make([]Value, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed == "" {
				continue
			}
			v, err := parseScalar(trimmed, kind)
			if err != nil {
				return Value{}, fmt.Errorf("invalid list element %q: %w", trimmed, err)
			}
			list = append(list, v)
		}
		return Value{Kind: kind, List: list}, nil
	}
	return parseScalar(text, kind)
}

func parseScalar(text string, kind ValueKind) (Value, error) {
	return CoerceValue(text, kind)
}

// Equal reports whether two values of the same kind are equal. Null values
// are equal only to other nulls.
func (v Value) Equal(other Value) bool {
	if v.Null || other.Null {
		return v.Null && other.Null
	}
	switch v.Kind {
	case ValueKindNumber:
		return v.Num == other.Num
	case ValueKindBool:
		return v.Bool == other.Bool
	case ValueKindDate:
		return v.Time.Equal(other.Time)
	default:
		return v.Str == other.Str
	}
}

// Less reports whether v orders before other. Strings compare
// lexicographically; booleans treat false < true; nulls order before
// everything non-null.
func (v Value) Less(other Value) bool {
	if v.Null || other.Null {
		return v.Null && !other.Null
	}
	switch v.Kind {
	case ValueKindNumber:
		return v.Num < other.Num
	case ValueKindBool:
		return !v.Bool && other.Bool
	case ValueKindDate:
		return v.Time.Before(other.Time)
	default:
		return v.Str < other.Str
	}
}

// In reports whether v equals any element of the other value's list.
func (v Value) In(other Value) bool {
	for _, elem := range other.List {
		if v.Equal(elem) {
			return true
		}
	}
	return false
}

// Contains reports whether v's string form contains other's string form.
func (v Value) Contains(other Value) bool {
	if v.Null || other.Null {
		return false
	}
	return strings.Contains(v.text(), other.text())
}

func (v Value) text() string {
	switch v.Kind {
	case ValueKindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueKindBool:
		return strconv.FormatBool(v.Bool)
	case ValueKindDate:
		return v.Time.Format(time.RFC3339)
	default:
		return v.Str
	}
}

func toFloat(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to number", raw)
	}
}

func toBool(raw any) (bool, error) {
	switch b := raw.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("cannot coerce %q to bool", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("cannot coerce %T to bool", raw)
	}
}

func toTime(raw any) (time.Time, error) {
	switch t := raw.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot coerce %q to date", t)
	default:
		return time.Time{}, fmt.Errorf("cannot coerce %T to date", raw)
	}
}
