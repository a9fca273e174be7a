// Package apperr is the typed failure taxonomy returned by the core. Callers
// decide user-facing messaging from the Kind; nothing here is retried.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindInactive   Kind = "inactive"
	KindRejected   Kind = "rejected"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
)

// Sentinels for errors.Is matching on Kind alone.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrInactive   = &Error{Kind: KindInactive}
	ErrRejected   = &Error{Kind: KindRejected}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrForbidden  = &Error{Kind: KindForbidden}
)

// ConflictWindow identifies the window a request collided with. Role names
// what was double-booked: "machine", "manager" or "user".
type ConflictWindow struct {
	Role  string    `json:"role"`
	ID    int64     `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Reasons  []string
	Conflict *ConflictWindow
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Status maps the kind onto an HTTP status for the transport layer.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInactive, KindConflict:
		return http.StatusConflict
	case KindRejected:
		return http.StatusUnprocessableEntity
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string, id int64) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    entity + "_not_found",
		Message: fmt.Sprintf("%s %d not found", strings.ReplaceAll(entity, "_", " "), id),
	}
}

func Inactive(entity string, id int64) *Error {
	return &Error{
		Kind:    KindInactive,
		Code:    entity + "_inactive",
		Message: fmt.Sprintf("%s %d is inactive", strings.ReplaceAll(entity, "_", " "), id),
	}
}

// Rejected is an anti-cheat rejection. It is not a system fault.
func Rejected(reason string) *Error {
	return &Error{Kind: KindRejected, Code: "progress_rejected", Message: reason, Reasons: []string{reason}}
}

func Conflict(role string, id int64, start, end time.Time) *Error {
	return &Error{
		Kind:     KindConflict,
		Code:     role + "_conflict",
		Message:  fmt.Sprintf("requested window overlaps an existing %s booking", role),
		Conflict: &ConflictWindow{Role: role, ID: id, Start: start, End: end},
	}
}

func Forbidden(code, message string, reasons ...string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message, Reasons: reasons}
}
