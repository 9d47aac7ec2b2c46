package models

import (
	"bytes"
	"encoding/json"
)

// Patch is one field of a partial update. A zero Patch leaves the field
// untouched; a set Patch with a nil Value clears it.
type Patch[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns a Patch that assigns v.
func SetTo[T any](v T) Patch[T] {
	return Patch[T]{Set: true, Value: &v}
}

// Clear returns a Patch that assigns NULL.
func Clear[T any]() Patch[T] {
	return Patch[T]{Set: true}
}

// UnmarshalJSON marks the field present; it is only called when the key
// appears in the document.
func (p *Patch[T]) UnmarshalJSON(b []byte) error {
	p.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		p.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p.Value = &v
	return nil
}

// value returns the column value for SQL drivers: nil for a cleared field.
func (p Patch[T]) value() any {
	if p.Value == nil {
		return nil
	}
	return *p.Value
}

func (p Patch[T]) apply(dst **T) {
	if !p.Set {
		return
	}
	if p.Value == nil {
		*dst = nil
		return
	}
	v := *p.Value
	*dst = &v
}
