// Package errors provides centralized error definitions and error handling utilities
// for Pagebook. It defines sentinel errors, semantic error types, and
// classification helpers used by the page store and every surface built on it.
//
// # Error Types
//
// Semantic errors represent the conditions a page store caller must handle:
//   - NotFoundError: the referenced page title does not exist
//   - AlreadyExistsError: the target title belongs to a different page
//   - ConflictError: optimistic-lock version mismatch on a conditional write
//   - AuthError: the admission gate rejected a credential or no session was admitted
//   - ValidationError: invalid input (for example an empty title)
//   - StorageError: the durable medium failed to apply a mutation
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewNotFoundError("page", "Intro")
//	err := errors.NewConflictError("Intro", expected, current)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrVersionConflict) { ... }
//
//	var conflict *errors.ConflictError
//	if errors.As(err, &conflict) { ... }
//
//	if errors.IsConflict(err) { reload() }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: the caller may reload and try again (conflicts)
//   - UserFacing: safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Page store sentinel errors
var (
	// ErrPageNotFound indicates that the referenced title does not resolve to a page.
	ErrPageNotFound = New("page not found")
	// ErrPageExists indicates that a title is already taken by another page.
	ErrPageExists = New("page already exists")
	// ErrVersionConflict indicates that the page changed since the caller loaded it.
	ErrVersionConflict = New("version conflict")
	// ErrStorage indicates that the durable medium rejected a mutation.
	ErrStorage = New("storage failure")
)

// Admission sentinel errors
var (
	// ErrAuthFailed indicates that a credential was rejected by the admission gate.
	ErrAuthFailed = New("authentication failed")
	// ErrNotAdmitted indicates that a store operation was attempted before admission.
	ErrNotAdmitted = New("not authenticated")
	// ErrSessionClosed indicates that the admitted session has been torn down.
	ErrSessionClosed = New("session closed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// PagebookError is the base interface for all Pagebook errors.
type PagebookError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the caller may succeed by reloading and
	// trying again.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("page", "Intro")
//	fmt.Println(err) // "page 'Intro' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrPageNotFound && e.ResourceType == "page" {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("page", "Intro")
//	fmt.Println(err) // "page 'Intro' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	if target == ErrPageExists && e.ResourceType == "page" {
		return true
	}
	return e.baseError.Is(target)
}

// ConflictError is returned when a conditional write names a version that
// is no longer current. Expected and Current are the serialized tags; the
// caller should reload the page and reapply its edit.
//
// Example:
//
//	err := errors.NewConflictError("Intro", "3-9f0c...", "4-9f0c...")
//	fmt.Println(err) // "version conflict [page=Intro]: page changed since it was loaded"
type ConflictError struct {
	baseError
	Title    string
	Expected string
	Current  string
}

// NewConflictError creates a new ConflictError.
func NewConflictError(title, expected, current string) *ConflictError {
	return &ConflictError{
		baseError: baseError{
			message:    "page changed since it was loaded",
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Title:    title,
		Expected: expected,
		Current:  current,
	}
}

// Error returns the formatted error message.
func (e *ConflictError) Error() string {
	prefix := "version conflict"
	if e.Title != "" {
		prefix = fmt.Sprintf("version conflict [page=%s]", e.Title)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConflictError) Is(target error) bool {
	if _, ok := target.(*ConflictError); ok {
		return true
	}
	if target == ErrVersionConflict {
		return true
	}
	return e.baseError.Is(target)
}

// AuthError represents a rejection by the admission gate.
//
// Example:
//
//	err := errors.NewAuthError("invalid token", errors.ErrAuthFailed).WithSessionID("abc")
type AuthError struct {
	baseError
	SessionID string
	Attempt   int
}

// NewAuthError creates a new AuthError.
func NewAuthError(message string, cause error) *AuthError {
	return &AuthError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *AuthError) WithSessionID(id string) *AuthError {
	e.SessionID = id
	return e
}

// WithAttempt records which prompt attempt failed.
func (e *AuthError) WithAttempt(n int) *AuthError {
	e.Attempt = n
	return e
}

// Error returns the formatted error message.
func (e *AuthError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "auth error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("auth error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AuthError) Is(target error) bool {
	if _, ok := target.(*AuthError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("title cannot be empty").WithField("title").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%q", fmt.Sprint(e.Value)))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// StorageError represents a failure of the durable medium behind the store.
// The in-memory state is left untouched when one is returned.
type StorageError struct {
	baseError
	Op    string
	Title string
}

// NewStorageError creates a new StorageError.
func NewStorageError(op, title string, cause error) *StorageError {
	return &StorageError{
		baseError: baseError{
			message:    op,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
		Op:    op,
		Title: title,
	}
}

// Error returns the formatted error message.
func (e *StorageError) Error() string {
	prefix := "storage error"
	if e.Title != "" {
		prefix = fmt.Sprintf("storage error [page=%s]", e.Title)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StorageError) Is(target error) bool {
	if _, ok := target.(*StorageError); ok {
		return true
	}
	if target == ErrStorage {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a condition the caller
// can resolve by reloading and trying again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pbErr PagebookError
	if As(err, &pbErr) {
		return pbErr.IsRetryable()
	}

	return false
}

// IsConflict reports whether err is an optimistic-lock rejection.
// UIs use it to offer "reload and retry" instead of a hard failure.
func IsConflict(err error) bool {
	return err != nil && Is(err, ErrVersionConflict)
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    display(err.Error())
//	} else {
//	    display("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var pbErr PagebookError
	if As(err, &pbErr) {
		return pbErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement PagebookError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var pbErr PagebookError
	if As(err, &pbErr) {
		return pbErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to open store")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
