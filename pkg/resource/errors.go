package resource

import (
	"errors"
	"fmt"
)

// The error taxonomy surfaced to consumers. Mutation calls return exactly one
// of these categories (or nil); consumers branch with the Is* helpers and
// render failures as dismissible notifications, never as a full-page failure.

// NotFoundError reports that an update or delete referenced an ID that no
// longer exists server-side.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: row %q not found", e.Table, e.ID)
}

// ValidationError reports that the backend rejected the payload shape, for
// example a missing required field or a value outside its enum.
type ValidationError struct {
	Table  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid payload: %s: %v", e.Table, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: invalid payload: %s", e.Table, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PermissionError reports that the backend authorization layer rejected the
// operation for the current session.
type PermissionError struct {
	Table string
	Op    string
	Err   error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %s denied: %v", e.Table, e.Op, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ConnectivityError reports that the backend was unreachable. The collection
// snapshot is left unchanged; consumers should retry or show a banner.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) a [NotFoundError].
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsValidation reports whether err is (or wraps) a [ValidationError].
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsPermission reports whether err is (or wraps) a [PermissionError].
func IsPermission(err error) bool {
	var e *PermissionError
	return errors.As(err, &e)
}

// IsConnectivity reports whether err is (or wraps) a [ConnectivityError].
func IsConnectivity(err error) bool {
	var e *ConnectivityError
	return errors.As(err, &e)
}
