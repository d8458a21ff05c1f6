// Package apperr is the error taxonomy surfaced to users: not authorized,
// fetch failed, write failed and validation failed. Backend errors are
// wrapped in one of these before they reach the presentation layer.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotAuthorized is returned when an email is absent from the allow-list.
var ErrNotAuthorized = errors.New("email is not authorized to sign in")

// Op is the kind of write that failed.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// FetchFailed wraps any read error. State is left stale or empty.
type FetchFailed struct {
	Resource string
	Err      error
}

func (e *FetchFailed) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchFailed) Unwrap() error { return e.Err }

// WriteFailed wraps a create, update or delete error.
type WriteFailed struct {
	Op     Op
	Entity string
	Err    error
}

func (e *WriteFailed) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *WriteFailed) Unwrap() error { return e.Err }

// ValidationFailed blocks a submission before any network call.
type ValidationFailed struct {
	Fields []string
	Reason string
}

func (e *ValidationFailed) Error() string {
	msg := "missing or invalid: " + strings.Join(e.Fields, ", ")
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Invalid builds a ValidationFailed for the given fields.
func Invalid(reason string, fields ...string) *ValidationFailed {
	return &ValidationFailed{Fields: fields, Reason: reason}
}

// Message converts err into the notice shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		vf *ValidationFailed
		wf *WriteFailed
		ff *FetchFailed
	)
	switch {
	case errors.Is(err, ErrNotAuthorized):
		return "This email is not authorized. Ask a manager to add it to the allow-list."
	case errors.As(err, &vf):
		return "Please fix: " + strings.Join(vf.Fields, ", ") + reasonSuffix(vf.Reason)
	case errors.As(err, &wf):
		return fmt.Sprintf("Failed to %s %s. Please try again.", wf.Op, wf.Entity)
	case errors.As(err, &ff):
		return fmt.Sprintf("Failed to load %s.", ff.Resource)
	}
	return "Something went wrong: " + err.Error()
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return " (" + reason + ")"
}
