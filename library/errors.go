package library

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without parsing messages.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput means a field was missing or malformed.
	KindInvalidInput
	// KindNotFound means a referenced id does not exist.
	KindNotFound
	// KindConflict means the operation would break an invariant and was refused.
	KindConflict
	// KindStoreUnavailable means persistence failed underneath the operation.
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindStoreUnavailable:
		return "store unavailable"
	default:
		return "unknown"
	}
}

// Error is the structured failure returned by every LibraryManager operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Failure reasons. Match them with errors.Is.
var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidInput, Msg: "invalid username or password"}

	ErrUserNotFound = &Error{Kind: KindNotFound, Msg: "user not found"}
	ErrBookNotFound = &Error{Kind: KindNotFound, Msg: "book not found"}
	ErrLoanNotFound = &Error{Kind: KindNotFound, Msg: "loan not found"}

	ErrDuplicateUsername = &Error{Kind: KindConflict, Msg: "username already exists"}
	ErrNoCopiesAvailable = &Error{Kind: KindConflict, Msg: "no copies available"}
	ErrAlreadyReturned   = &Error{Kind: KindConflict, Msg: "loan already returned"}
	ErrHasOpenLoans      = &Error{Kind: KindConflict, Msg: "has active (unreturned) loans"}
	ErrSelfDelete        = &Error{Kind: KindConflict, Msg: "cannot delete your own account"}
	ErrLastAdmin         = &Error{Kind: KindConflict, Msg: "cannot delete the last remaining admin"}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// storeFailure marks err as a persistence failure unless it already carries a kind.
func storeFailure(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return &Error{Kind: KindStoreUnavailable, Msg: "store unavailable", Err: err}
}
