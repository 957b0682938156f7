// Package errors defines the bridge's sentinel errors and the error types
// that carry a result.Code across Go call boundaries.
//
//   - ResultError: a bridge operation failed with a result.Code
//   - RecordError: a fixed-layout record could not be encoded or decoded
//   - ValidationError: invalid caller input
//
// Usage:
//
//	err := errors.NewResultError("submit", result.InvalidParam, errors.ErrNilCallback).
//		WithFeature("found_objects")
//
//	if errors.CodeOf(err) == result.PrivilegeDenied { ... }
//	if errors.Is(err, errors.ErrSymbolMissing) { ... }
//
// The bridge never retries on its own. IsRetryable only tells a caller that
// resubmitting later could succeed.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Re-exported so callers need only this package.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// Severity tells how loudly an error should be logged.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	// SeverityCritical marks failures that need a different library build,
	// such as a missing entry point.
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

// Caller input.
var (
	ErrNilCallback     = New("callback is nil")
	ErrInvalidFilter   = New("invalid filter")
	ErrInvalidSettings = New("invalid settings")
)

// Lifecycle.
var (
	// ErrNotStarted indicates the feature's native resource does not exist.
	ErrNotStarted      = New("native resource not started")
	ErrDisabled        = New("feature disabled")
	ErrPrivilegeDenied = New("privilege denied")
	// ErrClosed indicates work was scheduled after shutdown.
	ErrClosed = New("dispatcher closed")
)

// Native boundary.
var (
	// ErrSymbolMissing indicates an entry point is absent from the loaded library.
	ErrSymbolMissing  = New("native symbol missing")
	ErrNativeCall     = New("native call failed")
	ErrTooManyResults = New("result count exceeds maximum")
)

// Records.
var (
	ErrRecordSize    = New("record size mismatch")
	ErrRecordVersion = New("record version mismatch")
	// ErrFieldOverflow indicates a value does not fit its fixed-size field.
	ErrFieldOverflow = New("field overflow")
)

// ResultError is a failed bridge operation together with the code reported
// to the caller.
//
//	err := errors.NewResultError("begin query", result.InvalidParam, errors.ErrNativeCall).
//		WithFeature("barcode").WithStatus(5)
//	fmt.Println(err) // "begin query failed [feature=barcode, status=5]: InvalidParam: native call failed"
type ResultError struct {
	Op      string
	Code    result.Code
	Feature string
	Status  native.Status
	Token   native.Handle

	cause     error
	severity  Severity
	hasStatus bool
}

// NewResultError creates a ResultError whose severity follows the code.
func NewResultError(op string, code result.Code, cause error) *ResultError {
	return &ResultError{
		Op:       op,
		Code:     code,
		Token:    native.InvalidHandle,
		cause:    cause,
		severity: severityFor(code),
	}
}

func severityFor(code result.Code) Severity {
	switch code {
	case result.Ok:
		return SeverityDebug
	case result.Pending:
		return SeverityInfo
	case result.InvalidParam, result.PrivilegeDenied, result.Timeout, result.Locked:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// WithFeature adds the feature name to the error context.
func (e *ResultError) WithFeature(name string) *ResultError {
	e.Feature = name
	return e
}

// WithStatus records the raw native status the code was translated from.
func (e *ResultError) WithStatus(s native.Status) *ResultError {
	e.Status = s
	e.hasStatus = true
	return e
}

// WithToken records the query token involved.
func (e *ResultError) WithToken(h native.Handle) *ResultError {
	e.Token = h
	return e
}

// WithSeverity overrides the severity derived from the code.
func (e *ResultError) WithSeverity(s Severity) *ResultError {
	e.severity = s
	return e
}

// Severity returns how loudly the error should be logged.
func (e *ResultError) Severity() Severity { return e.severity }

// Retryable reports whether the code describes a transient condition.
func (e *ResultError) Retryable() bool {
	return e.Code == result.Pending || e.Code == result.Timeout || e.Code == result.Locked
}

func (e *ResultError) Error() string {
	var parts []string
	if e.Feature != "" {
		parts = append(parts, "feature="+e.Feature)
	}
	if e.Token.Valid() {
		parts = append(parts, "token="+e.Token.String())
	}
	if e.hasStatus {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}

	prefix := e.Op + " failed"
	if len(parts) > 0 {
		prefix += " [" + strings.Join(parts, ", ") + "]"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Code, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Code)
}

func (e *ResultError) Unwrap() error { return e.cause }

// Is matches a *ResultError target carrying the same code.
func (e *ResultError) Is(target error) bool {
	t, ok := target.(*ResultError)
	return ok && t.Code == e.Code
}

// RecordError reports a fixed-layout record that failed to encode or decode.
//
//	err := errors.NewRecordError("found_object", errors.ErrRecordSize).WithLength(112, 96)
type RecordError struct {
	Record string
	Field  string
	// Index is the result index of the record, or -1.
	Index int
	Want  int
	Got   int

	cause error
}

// NewRecordError creates a RecordError for the named record layout.
func NewRecordError(record string, cause error) *RecordError {
	return &RecordError{Record: record, Index: -1, cause: cause}
}

// WithField names the field that failed.
func (e *RecordError) WithField(field string) *RecordError {
	e.Field = field
	return e
}

// WithIndex records the result index of the failing record.
func (e *RecordError) WithIndex(i int) *RecordError {
	e.Index = i
	return e
}

// WithLength records the expected and actual lengths.
func (e *RecordError) WithLength(want, got int) *RecordError {
	e.Want = want
	e.Got = got
	return e
}

func (e *RecordError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, "field="+e.Field)
	}
	if e.Index >= 0 {
		parts = append(parts, fmt.Sprintf("index=%d", e.Index))
	}
	if e.Want != 0 || e.Got != 0 {
		parts = append(parts, fmt.Sprintf("want=%d, got=%d", e.Want, e.Got))
	}

	msg := "record " + e.Record
	if len(parts) > 0 {
		msg += " [" + strings.Join(parts, ", ") + "]"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *RecordError) Unwrap() error { return e.cause }

// ValidationError is caller input the bridge refuses to encode.
//
//	err := errors.NewValidationError("max results out of range").
//		WithField("max_results").WithValue(0)
type ValidationError struct {
	Message string
	Field   string
	Value   any

	cause error
}

// NewValidationError creates a ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// WithField names the offending field.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause attaches the underlying error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Severity implements the severity lookup used by SeverityOf.
func (e *ValidationError) Severity() Severity { return SeverityWarning }

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, "field="+e.Field)
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix += " [" + strings.Join(parts, ", ") + "]"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.cause)
	}
	return prefix + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.cause }

// CodeOf returns the result code an error carries. A nil error is Ok, a
// validation error is InvalidParam, and any error that does not carry a code
// is UnspecifiedFailure.
func CodeOf(err error) result.Code {
	if err == nil {
		return result.Ok
	}
	var resultErr *ResultError
	if As(err, &resultErr) {
		return resultErr.Code
	}
	var validation *ValidationError
	if As(err, &validation) {
		return result.InvalidParam
	}
	return result.UnspecifiedFailure
}

// IsSymbolMissing reports whether err stems from a missing native entry point.
func IsSymbolMissing(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrSymbolMissing) {
		return true
	}
	var symErr *native.SymbolError
	return As(err, &symErr)
}

// IsRetryable reports whether resubmitting after err could succeed.
func IsRetryable(err error) bool {
	var resultErr *ResultError
	return As(err, &resultErr) && resultErr.Retryable()
}

// SeverityOf returns the severity err carries. Errors without one are
// SeverityError; nil is SeverityDebug.
func SeverityOf(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var s interface{ Severity() Severity }
	if As(err, &s) {
		return s.Severity()
	}
	return SeverityError
}
