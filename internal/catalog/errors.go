package catalog

import (
	"errors"
	"fmt"
)

// Kind classifies a catalog failure. Handlers map kinds to status codes.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindForbidden
	KindNotFound
	KindUpload
	KindPersistence
	// KindAmbiguous is a persistence failure where the write may or may not
	// have landed: the record was accepted but could not be read back.
	KindAmbiguous
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindUpload:
		return "upload_failure"
	case KindPersistence:
		return "persistence_failure"
	case KindAmbiguous:
		return "ambiguous_state"
	}
	return "unknown"
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrForbidden   = &Error{Kind: KindForbidden}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrUpload      = &Error{Kind: KindUpload}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrAmbiguous   = &Error{Kind: KindAmbiguous}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind. An ambiguous failure also reports as a persistence failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindAmbiguous && t.Kind == KindPersistence
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first catalog error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
