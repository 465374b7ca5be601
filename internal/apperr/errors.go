// Package apperr holds the error taxonomy shared by the remote store client,
// the services and the app: network, permission and validation failures.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrNetwork  = errors.New("network error")
)

// NetworkError is a transport failure or a non-2xx response from the remote store.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP error! status: %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool {
	if target == ErrNetwork {
		return true
	}
	return target == ErrNotFound && e.Status == 404
}

// PermissionError is returned when the requester may not perform an action
// (non-admin deleting a group, non-sender deleting a message...).
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string { return e.Msg }

func Permission(format string, args ...any) error {
	return &PermissionError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError aborts an action before any remote call.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string { return strings.Join(e.Errors, ", ") }

func Validation(msgs ...string) error {
	return &ValidationError{Errors: msgs}
}

func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UserMessage is what the app shows in its alert area for err.
func UserMessage(err error) string {
	var (
		pe *PermissionError
		ve *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Msg
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrNetwork):
		return "Erreur de connexion au serveur"
	}
	return "Une erreur est survenue"
}
