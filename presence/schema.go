package presence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

var (
	// ErrRejected marks a payload that failed schema validation.
	ErrRejected = errors.New("presence: payload rejected")
	// ErrUnknownChannel is returned for frames naming an unregistered channel.
	ErrUnknownChannel = errors.New("presence: unknown channel")
	// ErrStale is returned for a remote frame older than the stored slot.
	ErrStale = errors.New("presence: stale frame")
)

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Schema validates one payload type. Shape checks the wire form field by
// field before decoding; Validate checks the decoded value. A nil payload is
// always valid.
type Schema[T any] struct {
	Shape    func(gjson.Result) error
	Validate func(*T) error
}

// Parse decodes and validates a wire payload. "null" yields (nil, nil).
func (s Schema[T]) Parse(data []byte) (*T, error) {
	if isNull(data) {
		return nil, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, reject("malformed json")
	}
	if s.Shape != nil {
		if err := s.Shape(gjson.ParseBytes(data)); err != nil {
			return nil, err
		}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var v T
	if err := dec.Decode(&v); err != nil {
		return nil, reject("%v", err)
	}
	if err := s.Check(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Check validates an already typed value.
func (s Schema[T]) Check(v *T) error {
	if v == nil || s.Validate == nil {
		return nil
	}
	return s.Validate(v)
}

type fieldKind int

const (
	kindNumber fieldKind = iota
	kindString
	kindArray
)

func (k fieldKind) String() string {
	switch k {
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	}
	return "array"
}

type field struct {
	name     string
	kind     fieldKind
	optional bool
}

func required(name string, kind fieldKind) field { return field{name: name, kind: kind} }
func optional(name string, kind fieldKind) field {
	return field{name: name, kind: kind, optional: true}
}

// checkObject requires obj to be an object holding exactly the recognized
// fields, each with the right JSON type.
func checkObject(path string, obj gjson.Result, fields ...field) error {
	if !obj.IsObject() {
		return reject("%s: expected object", path)
	}
	known := make(map[string]field, len(fields))
	for _, f := range fields {
		known[f.name] = f
	}
	var err error
	obj.ForEach(func(key, _ gjson.Result) bool {
		if _, ok := known[key.String()]; !ok {
			err = reject("%s: unrecognized field %q", path, key.String())
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	for _, f := range fields {
		v := obj.Get(f.name)
		if !v.Exists() || v.Type == gjson.Null {
			if f.optional {
				continue
			}
			return reject("%s: missing %q", path, f.name)
		}
		if !hasKind(v, f.kind) {
			return reject("%s: field %q must be a %s", path, f.name, f.kind)
		}
	}
	return nil
}

func hasKind(v gjson.Result, k fieldKind) bool {
	switch k {
	case kindNumber:
		return v.Type == gjson.Number
	case kindString:
		return v.Type == gjson.String
	case kindArray:
		return v.IsArray()
	}
	return false
}

// checkEach applies check to every element of arr.
func checkEach(path string, arr gjson.Result, check func(string, gjson.Result) error) error {
	if !arr.IsArray() {
		return nil
	}
	var err error
	i := 0
	arr.ForEach(func(_, el gjson.Result) bool {
		err = check(fmt.Sprintf("%s[%d]", path, i), el)
		i++
		return err == nil
	})
	return err
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return reject("%s is not a finite number", name)
	}
	return nil
}

func finitePtr(name string, v *float64) error {
	if v == nil {
		return nil
	}
	return finite(name, *v)
}

func nonEmpty(name, v string) error {
	if v == "" {
		return reject("%s must not be empty", name)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
