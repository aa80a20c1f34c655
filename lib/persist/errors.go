package persist

import (
	"fmt"

	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/identity"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

// ErrCode classifies the failures of the persistence engine
type ErrCode uint8

const (
	CodeSerialization    ErrCode = iota + 1 // 1: a value could not be encoded or decoded
	CodeStorage                             // 2: the store rejected a read or write
	CodeSchemaMismatch                      // 3: stored data does not match the registered codec
	CodeMissingMapping                      // 4: an entity has no (or a conflicting) stable id
	CodeInvalidOperation                    // 5: the engine was used out of order
)

func (c ErrCode) String() string {
	switch c {
	case CodeSerialization:
		return "SerializationError"
	case CodeStorage:
		return "StorageError"
	case CodeSchemaMismatch:
		return "SchemaMismatch"
	case CodeMissingMapping:
		return "MissingMapping"
	case CodeInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its code.
var (
	ErrSerialization    = &Error{Code: CodeSerialization}
	ErrStorage          = &Error{Code: CodeStorage}
	ErrSchemaMismatch   = &Error{Code: CodeSchemaMismatch}
	ErrMissingMapping   = &Error{Code: CodeMissingMapping}
	ErrInvalidOperation = &Error{Code: CodeInvalidOperation}
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error describes a failure concerning one component type, one record or the
// engine as a whole. Tag and ID are zero when not applicable.
type Error struct {
	Code ErrCode
	Tag  ecs.ComponentTag
	ID   identity.StableID
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := e.Code.String()
	if e.Tag != "" {
		s += fmt.Sprintf(" [%s", e.Tag)
		if e.ID != identity.Nil {
			s += " " + e.ID.String()
		}
		s += "]"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Msg == "" && t.Err == nil && t.Tag == ""
}

func newError(code ErrCode, tag ecs.ComponentTag, id identity.StableID, msg string, err error) *Error {
	return &Error{Code: code, Tag: tag, ID: id, Msg: msg, Err: err}
}
