// Package value implements the common tagged value and error-kind types
// shared by every field-bus driver and by the registry that dispatches
// across them.
package value

import (
	"errors"
	"fmt"
)

// Kind identifies which variant of Value is populated.
type Kind int

const (
	KindLong Kind = iota
	KindDouble
	KindString
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Value is a closed sum type over the four shapes a fetched channel
// sample can take. The zero Value is a Long of 0.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	err  ErrorKind
}

// Long constructs an integral value, used for digital inputs/outputs.
func Long(v int64) Value { return Value{kind: KindLong, i: v} }

// Double constructs a floating-point value, used for scaled analog
// readings such as temperatures and flow rates.
func Double(v float64) Value { return Value{kind: KindDouble, f: v} }

// String constructs a textual value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Err constructs an error value carrying the given ErrorKind. Ok is not
// a meaningful payload for an error Value and callers should not use it.
func Err(k ErrorKind) Value { return Value{kind: KindError, err: k} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Long returns v's integer payload and true if v is a Long.
func (v Value) Long() (int64, bool) {
	if v.kind != KindLong {
		return 0, false
	}
	return v.i, true
}

// Double returns v's float payload and true if v is a Double.
func (v Value) Double() (float64, bool) {
	if v.kind != KindDouble {
		return 0, false
	}
	return v.f, true
}

// Text returns v's string payload and true if v is a String.
//
// Unlike a fmt.Stringer's String method it returns an ok flag instead
// of always succeeding, since an out-of-variant call is a caller bug
// worth surfacing rather than silently formatting the wrong thing.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// ErrorKind returns v's error payload and true if v is an Error.
func (v Value) ErrorKind() (ErrorKind, bool) {
	if v.kind != KindError {
		return Ok, false
	}
	return v.err, true
}

// Format implements fmt.Stringer-like rendering for logging and CSV
// fallbacks; csvlog has its own formatting rules and does not rely on
// this for its canonical output.
func (v Value) Format() string {
	switch v.kind {
	case KindLong:
		return fmt.Sprintf("%d", v.i)
	case KindDouble:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindError:
		return v.err.Error()
	default:
		return "?"
	}
}

// ErrorKind enumerates the fixed set of failure categories a driver or
// the registry can report. It implements the error interface so a
// decoded error Value can be returned and compared with errors.Is
// directly.
type ErrorKind int

const (
	// Ok is not an error; it exists so ErrorKind has a defined zero
	// value distinct from every real failure category.
	Ok ErrorKind = iota
	ErrGeneric
	ErrConfig
	ErrLoadModule
	ErrInvalidAddress
	ErrIO
	ErrTimeout
	ErrInvalidResponse
	ErrDeviceNotFound
)

// allKinds enumerates every non-Ok ErrorKind, in the order KindOf
// checks them.
var allKinds = []ErrorKind{
	ErrGeneric, ErrConfig, ErrLoadModule, ErrInvalidAddress,
	ErrIO, ErrTimeout, ErrInvalidResponse, ErrDeviceNotFound,
}

// KindOf recovers the ErrorKind wrapped inside err, so a driver can
// turn a returned error back into an Error-tagged Value without
// losing its category. It reports ErrGeneric if err wraps none of the
// known kinds, and Ok if err is nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return Ok
	}
	for _, k := range allKinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrGeneric
}

func (k ErrorKind) Error() string {
	switch k {
	case Ok:
		return "ok"
	case ErrGeneric:
		return "generic error"
	case ErrConfig:
		return "invalid configuration"
	case ErrLoadModule:
		return "failed to load module"
	case ErrInvalidAddress:
		return "invalid channel address"
	case ErrIO:
		return "i/o error"
	case ErrTimeout:
		return "operation timed out"
	case ErrInvalidResponse:
		return "invalid device response"
	case ErrDeviceNotFound:
		return "device not found"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}
