// Package doctool defines the shared error taxonomy for the toolkit.
//
// Engines return these structured errors instead of free-form strings so
// that the session layer can map each failure to the right user-facing
// message without inspecting error text.
package doctool

import (
	"errors"
	"fmt"
)

// LoadErrorKind classifies document load failures.
type LoadErrorKind int

const (
	// KindMalformed means the bytes are not a structurally valid document.
	KindMalformed LoadErrorKind = iota
	// KindEncrypted means the document is encrypted and no password (or an
	// empty one) was supplied.
	KindEncrypted
	// KindWrongPassword means a password was supplied but did not
	// authenticate.
	KindWrongPassword
)

func (k LoadErrorKind) String() string {
	switch k {
	case KindEncrypted:
		return "encrypted"
	case KindWrongPassword:
		return "wrong password"
	default:
		return "malformed"
	}
}

// LoadError reports a failure to load a document, carrying a structured
// kind so callers never have to match on message substrings.
type LoadError struct {
	Kind LoadErrorKind
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load document: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("load document: %s", e.Kind)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DecodeError reports an unreadable or corrupt input file.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InvalidParameterError reports a numeric or range option outside its
// allowed domain.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

// MissingParameterError reports a required option that was left empty.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %s", e.Name)
}

// ErrNoFileSelected is returned when an operation is submitted without any
// input file.
var ErrNoFileSelected = errors.New("no file selected")

// OperationUnsupportedError reports a tool that is not wired to an engine.
type OperationUnsupportedError struct {
	Tool string
}

func (e *OperationUnsupportedError) Error() string {
	return fmt.Sprintf("operation %s not supported", e.Tool)
}

// Unexpected wraps an engine failure that does not fit the taxonomy while
// preserving the underlying message.
func Unexpected(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("unexpected: %w", err)
}

// IsLoadKind reports whether err is a LoadError of the given kind.
func IsLoadKind(err error, kind LoadErrorKind) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Kind == kind
}
