package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

type fieldOp uint8

const (
	opUnchanged fieldOp = iota
	opClear
	opSet
)

// Field is a partial-update value: Unchanged, ClearToNull or SetTo(v).
// The zero value is Unchanged so omitted JSON keys need no handling.
//
// JSON decoding: null keeps the current value, "" clears it, anything else
// sets it. A string made only of whitespace also clears.
type Field[T any] struct {
	op    fieldOp
	value T
}

func Unchanged[T any]() Field[T] {
	return Field[T]{}
}

func ClearToNull[T any]() Field[T] {
	return Field[T]{op: opClear}
}

func SetTo[T any](v T) Field[T] {
	return Field[T]{op: opSet, value: v}
}

func (f Field[T]) IsUnchanged() bool { return f.op == opUnchanged }
func (f Field[T]) IsClear() bool     { return f.op == opClear }
func (f Field[T]) IsSet() bool       { return f.op == opSet }

// Value returns the value to set, if any.
func (f Field[T]) Value() (T, bool) {
	return f.value, f.op == opSet
}

// Resolve applies the update to the current nullable value.
func (f Field[T]) Resolve(current *T) *T {
	switch f.op {
	case opClear:
		return nil
	case opSet:
		v := f.value
		return &v
	default:
		return current
	}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = Unchanged[T]()
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*f = ClearToNull[T]()
			return nil
		}
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*f = SetTo(v)
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	switch f.op {
	case opSet:
		return json.Marshal(f.value)
	case opClear:
		return []byte(`""`), nil
	default:
		return []byte("null"), nil
	}
}

// NormalizeText trims a text update and optionally upper-cases it. A value
// that trims to empty becomes ClearToNull.
func NormalizeText(f Field[string], upper bool) Field[string] {
	if !f.IsSet() {
		return f
	}
	v, _ := f.Value()
	if upper {
		v = NormalizeIdentifier(v)
	} else {
		v = strings.TrimSpace(v)
	}
	if v == "" {
		return ClearToNull[string]()
	}
	return SetTo(v)
}
