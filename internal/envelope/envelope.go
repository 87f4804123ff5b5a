package envelope

import (
	"errors"
	"reflect"
	"time"
)

// Kind names an envelope variant
type Kind string

const (
	KindEmpty  Kind = "empty"
	KindObject Kind = "object"
	KindArray  Kind = "array"
	KindError  Kind = "error"
)

// ErrNotSequence is returned when an array envelope is built from a value
// that is neither a slice nor an array.
var ErrNotSequence = errors.New("array result must be a slice or array")

// Envelope is implemented by Empty, Object, Array and Error only.
type Envelope interface {
	Kind() Kind
	Accepted() time.Time
	sealed()
}

// Empty acknowledges a request without a payload
type Empty struct {
	AcceptedAt time.Time
}

// Object carries a single serializable value
type Object struct {
	AcceptedAt time.Time
	Result     any
}

// Array carries an ordered sequence. Result always holds a non-nil slice or
// array so that it serializes as [] rather than null.
type Array struct {
	AcceptedAt time.Time
	Result     any
}

// Error carries the serialized form of a failure
type Error struct {
	AcceptedAt time.Time
	Body       ErrorBody
}

// ErrorBody is the client-facing part of a failure. Message is always
// present; Code and Detail are set by structured business errors.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Detail  any    `json:"detail,omitempty"`
}

func (Empty) Kind() Kind  { return KindEmpty }
func (Object) Kind() Kind { return KindObject }
func (Array) Kind() Kind  { return KindArray }
func (Error) Kind() Kind  { return KindError }

func (e Empty) Accepted() time.Time  { return e.AcceptedAt }
func (e Object) Accepted() time.Time { return e.AcceptedAt }
func (e Array) Accepted() time.Time  { return e.AcceptedAt }
func (e Error) Accepted() time.Time  { return e.AcceptedAt }

func (Empty) sealed()  {}
func (Object) sealed() {}
func (Array) sealed()  {}
func (Error) sealed()  {}

// NewEmpty builds an Empty envelope
func NewEmpty(acceptedAt time.Time) Empty {
	return Empty{AcceptedAt: acceptedAt}
}

// NewObject builds an Object envelope
func NewObject(acceptedAt time.Time, value any) Object {
	return Object{AcceptedAt: acceptedAt, Result: value}
}

// NewArray builds an Array envelope from any slice or array value.
// A nil slice (or a nil interface) becomes an empty sequence.
func NewArray(acceptedAt time.Time, values any) (Array, error) {
	if values == nil {
		return Array{AcceptedAt: acceptedAt, Result: []any{}}, nil
	}

	v := reflect.ValueOf(values)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			values = reflect.MakeSlice(v.Type(), 0, 0).Interface()
		}
	case reflect.Array:
	default:
		return Array{}, ErrNotSequence
	}

	return Array{AcceptedAt: acceptedAt, Result: values}, nil
}

// ArrayOf is the typed form of NewArray
func ArrayOf[T any](acceptedAt time.Time, values []T) Array {
	if values == nil {
		values = []T{}
	}
	return Array{AcceptedAt: acceptedAt, Result: values}
}

// NewError builds an Error envelope
func NewError(acceptedAt time.Time, body ErrorBody) Error {
	return Error{AcceptedAt: acceptedAt, Body: body}
}
