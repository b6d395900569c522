// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the helper reacts to it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindSetup errors happen before the helper is running and end the process.
	KindSetup
	// KindIO errors abort one loop iteration (accept, send) and are retried.
	KindIO
	// KindInput marks malformed rule lines, requests or config values.
	KindInput
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindIO:
		return "io"
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified error with optional structured attributes.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err stays nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches a key/value to err, wrapping plain errors as KindInternal.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		e = &Error{
			Kind:       KindInternal,
			Message:    err.Error(),
			Underlying: err,
		}
	}

	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the outermost Kind in err's chain, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err should terminate the helper.
func IsFatal(err error) bool {
	return GetKind(err) == KindSetup
}

// GetAttributes collects attributes from every *Error in the chain.
// Outer values win over inner ones with the same key.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error

	for cur := err; cur != nil; {
		if !errors.As(cur, &e) {
			break
		}
		for k, v := range e.Attributes {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}
		cur = e.Underlying
	}

	return attrs
}

// LogArgs flattens err's attributes into slog key/value pairs.
func LogArgs(err error) []any {
	attrs := GetAttributes(err)
	args := make([]any, 0, 2*len(attrs)+4)
	args = append(args, "error", err, "kind", GetKind(err).String())
	for k, v := range attrs {
		args = append(args, k, v)
	}
	return args
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join is errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
