// Package sync contains the reconciliation engine: it walks the intermediate
// topology graph in dependency order and makes the target inventory store
// match it with idempotent create-or-update operations.
package sync

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a sync failure for propagation and reporting.
type ErrorClass string

const (
	// ErrorClassAuth indicates missing or unusable credentials. Fatal: the
	// run aborts immediately.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassDiscovery indicates source enumeration failed for one
	// account. That account is skipped and the run is marked degraded.
	ErrorClassDiscovery ErrorClass = "discovery"

	// ErrorClassMappingSkip indicates a single resource had invalid data and
	// was excluded from the graph.
	ErrorClassMappingSkip ErrorClass = "mapping_skip"

	// ErrorClassReconcile indicates a single object's create or update
	// failed. Recorded against the object; siblings continue.
	ErrorClassReconcile ErrorClass = "reconcile"

	// ErrorClassParentSkipped indicates an object was not attempted because
	// an object it depends on failed.
	ErrorClassParentSkipped ErrorClass = "parent_failed_skip"
)

// SyncError is a classified error with object context.
type SyncError struct {
	// Class is the error classification.
	Class ErrorClass

	// Message is the human-readable error message.
	Message string

	// Kind is the object kind involved, when applicable.
	Kind ObjectKind

	// Key identifies the object involved, when applicable.
	Key string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Kind != "" || e.Key != "" {
		msg = fmt.Sprintf("%s (kind=%s, key=%s)", msg, e.Kind, e.Key)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error { return e.Err }

// Is matches on class so sentinel comparisons work through errors.Is.
func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithObject attaches object context to the error.
func (e *SyncError) WithObject(kind ObjectKind, key string) *SyncError {
	e.Kind = kind
	e.Key = key
	return e
}

// NewAuthError creates a fatal authentication error.
func NewAuthError(message string, err error) *SyncError {
	return &SyncError{Class: ErrorClassAuth, Message: message, Err: err}
}

// NewDiscoveryError creates a per-account discovery error.
func NewDiscoveryError(message string, err error) *SyncError {
	return &SyncError{Class: ErrorClassDiscovery, Message: message, Err: err}
}

// NewReconcileError creates a per-object reconcile error.
func NewReconcileError(message string, err error) *SyncError {
	return &SyncError{Class: ErrorClassReconcile, Message: message, Err: err}
}

// NewParentSkippedError creates the cascade error recorded on descendants of
// a failed object.
func NewParentSkippedError(parentKey string) *SyncError {
	return &SyncError{
		Class:   ErrorClassParentSkipped,
		Message: "skipped: parent failed",
		Err:     fmt.Errorf("parent %s did not reconcile", parentKey),
	}
}

// IsAuth reports whether err is classified as an authentication failure.
func IsAuth(err error) bool { return hasClass(err, ErrorClassAuth) }

// IsDiscovery reports whether err is classified as a discovery failure.
func IsDiscovery(err error) bool { return hasClass(err, ErrorClassDiscovery) }

// IsParentSkipped reports whether err is a cascade skip.
func IsParentSkipped(err error) bool { return hasClass(err, ErrorClassParentSkipped) }

func hasClass(err error, class ErrorClass) bool {
	var e *SyncError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
