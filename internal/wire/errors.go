package wire

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of §7. Every error surfaced across a
// ClusterFederation RPC boundary, or by the balancer/proxy/roles/messaging/
// taskgraph components above it, carries one of these kinds.
type ErrorKind string

const (
	ErrClusterUnavailable       ErrorKind = "ClusterUnavailable"
	ErrTimeout                  ErrorKind = "Timeout"
	ErrPermissionDenied         ErrorKind = "PermissionDenied"
	ErrClusterError              ErrorKind = "ClusterError"
	ErrCapacityExceeded          ErrorKind = "CapacityExceeded"
	ErrLocalResourceExhausted    ErrorKind = "LocalResourceExhausted"
	ErrNoCapacity                ErrorKind = "NoCapacity"
	ErrCircularDependency        ErrorKind = "CircularDependency"
	ErrMigrationInProgress       ErrorKind = "MigrationInProgress"
	ErrAgentNotFound             ErrorKind = "AgentNotFound"
	ErrAgentAlreadyExists        ErrorKind = "AgentAlreadyExists"
	ErrRecipientUnknown          ErrorKind = "RecipientUnknown"
	ErrCannotOverrideBuiltinRole ErrorKind = "CannotOverrideBuiltinRole"
	ErrInvalidSpec               ErrorKind = "InvalidSpec"
	ErrInvalidUsername           ErrorKind = "InvalidUsername"
	ErrInvalidRole               ErrorKind = "InvalidRole"
	ErrCleanupPending            ErrorKind = "CleanupPending"
)

// Error is the wire representation of a federation-layer failure: a kind
// from the closed taxonomy, a human-readable message, and an optional
// wrapped cause for local (non-serialized) error chains.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	cause   error
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is lets errors.Is match on kind alone, since the cause chain is not
// carried across the wire.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok || other == nil || e == nil {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the ErrorKind of err, or "" if err is not a *wire.Error.
func KindOf(err error) ErrorKind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return ""
}
