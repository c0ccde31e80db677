// Package errors provides the error taxonomy shared by the PAULA codec.
//
// Every error type carries enough context (file name, offending pointer
// expression) to be reported per document, and unwraps to one of the
// sentinel errors below so callers can classify failures with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrParse indicates a malformed pointer expression
	ErrParse = errors.New("pointer syntax error")
	// ErrReferential indicates a pointer that names an element that does not exist
	ErrReferential = errors.New("unresolved reference")
	// ErrBounds indicates a character range outside its text
	ErrBounds = errors.New("character range out of bounds")
	// ErrIO indicates an unreadable or unwritable file
	ErrIO = errors.New("i/o failure")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "node", "edge", "document")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports ErrIO for every IOError regardless of the wrapped cause.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// ParseError represents a malformed pointer expression.
type ParseError struct {
	Expr    string // Offending expression
	File    string // File the expression was read from, if known
	Message string // Error details
	Err     error  // Specific failure kind (a sentinel from the pointer package)
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("invalid pointer %q in %s: %s", e.Expr, e.File, e.Message)
	}
	return fmt.Sprintf("invalid pointer %q: %s", e.Expr, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrParse
}

// Is reports ErrParse for every ParseError regardless of its kind.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ReferentialError reports a syntactically valid pointer whose target does not
// exist, or a range whose endpoints are not found in document order.
type ReferentialError struct {
	File    string // File containing the pointer
	Expr    string // Offending expression
	Target  string // Element that could not be resolved, if known
	Message string
}

func (e *ReferentialError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "target does not exist"
	}
	if e.Target != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Target)
	}
	return fmt.Sprintf("unresolved pointer %q in %s: %s", e.Expr, e.File, msg)
}

func (e *ReferentialError) Unwrap() error {
	return ErrReferential
}

// BoundsError reports a character range that does not fit its text.
type BoundsError struct {
	File   string // File containing the pointer
	Expr   string // Offending expression
	Begin  int    // Zero-based begin offset
	End    int    // Zero-based end offset (exclusive)
	Length int    // Length of the referenced text
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("character range [%d,%d) of %q in %s exceeds text of length %d",
		e.Begin, e.End, e.Expr, e.File, e.Length)
}

func (e *BoundsError) Unwrap() error {
	return ErrBounds
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError of the given kind.
func NewParse(expr string, kind error, message string) *ParseError {
	return &ParseError{
		Expr:    expr,
		Message: message,
		Err:     kind,
	}
}

// NewReferential creates a ReferentialError
func NewReferential(file, expr, target, message string) *ReferentialError {
	return &ReferentialError{
		File:    file,
		Expr:    expr,
		Target:  target,
		Message: message,
	}
}

// NewBounds creates a BoundsError
func NewBounds(file, expr string, begin, end, length int) *BoundsError {
	return &BoundsError{
		File:   file,
		Expr:   expr,
		Begin:  begin,
		End:    end,
		Length: length,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// InFile attaches a file name to a ParseError that lacks one. Other errors
// are returned unchanged.
func InFile(err error, file string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.File == "" {
		cp := *pe
		cp.File = file
		return &cp
	}
	return err
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}
