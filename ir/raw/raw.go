// Package raw defines the low-level object model shared by the scanner,
// parser and writer. Objects mirror the eight basic PDF types plus
// indirect references; no document semantics live here.
package raw

import "fmt"

// ObjectRef identifies an indirect object by number and generation.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Num, r.Gen)
}

// Object is the interface implemented by every raw object type.
type Object interface {
	// Type returns the object's type name for diagnostics.
	Type() string
}

// Name is a slash-prefixed name object. Val holds the decoded name
// without the slash.
type Name struct {
	Val string
}

func (Name) Type() string { return "name" }

// Number holds an integer or real. IsInt distinguishes the two; both
// fields are kept so integer values survive round-trips exactly.
type Number struct {
	I     int64
	F     float64
	IsInt bool
}

func (Number) Type() string { return "number" }

// Value returns the numeric value as a float64 regardless of kind.
func (n Number) Value() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// String holds a literal or hex string's decoded bytes.
type String struct {
	Bytes []byte
	Hex   bool
}

func (String) Type() string { return "string" }

// Bool is a boolean object.
type Bool struct {
	V bool
}

func (Bool) Type() string { return "bool" }

// Null is the null object.
type Null struct{}

func (Null) Type() string { return "null" }

// Array is an ordered collection of objects.
type Array struct {
	Items []Object
}

func (Array) Type() string { return "array" }

// Dict is a dictionary keyed by name (without the slash).
type Dict struct {
	KV map[string]Object
}

func (Dict) Type() string { return "dict" }

// Stream couples a dictionary with its raw (still encoded) data.
type Stream struct {
	Dict *Dict
	Data []byte
}

func (Stream) Type() string { return "stream" }

// Ref is an indirect reference to another object.
type Ref struct {
	R ObjectRef
}

func (Ref) Type() string { return "ref" }
