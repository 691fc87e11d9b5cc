package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary handling: conflicts map to 409,
// validation to 400, transient to 500 and broker retry, fatal to loud
// logging without crashing the consumer loop.
type Kind int

const (
	KindUnknown Kind = iota
	KindConflict
	KindValidation
	KindTransient
	KindFatal
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func Transient(message string, err error) error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

func Fatal(message string) error {
	return &Error{Kind: KindFatal, Message: message}
}

// KindOf returns the classification of err, or KindUnknown for errors
// that did not originate from this package.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsTransient(err error) bool  { return KindOf(err) == KindTransient }
