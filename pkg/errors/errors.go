// Package errors provides the structured error types used across the
// honestrf packages, built on top of github.com/cockroachdb/errors so every
// constructed error carries a stack trace.
//
// Three kinds of failures are distinguished:
//
//   - configuration errors (ValidationError, DimensionError): bad
//     hyperparameters or mismatched data shapes, reported before any tree
//     growth begins;
//   - lifecycle errors (NotFittedError): calling Predict or OOB scoring on a
//     forest that was never fitted;
//   - integrity errors (StructureError): a flattened tree encoding whose
//     parallel arrays cannot describe a valid pre-order tree.
//
// Programming-contract violations, such as asking a leaf node for its split
// feature, are deliberately not errors: they panic, because they indicate a
// caller bug rather than a data condition.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ValidationError reports a hyperparameter that fails construction-time
// validation. These are fatal: tree growth must not start with an invalid
// configuration.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("honestrf: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured validation context to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace attached.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// DimensionError reports input data whose dimensions do not match what an
// operation expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("honestrf: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured dimension context to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace attached.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// NotFittedError is returned when Predict or an OOB query is invoked on a
// forest that has not been fitted.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("honestrf: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured lifecycle context to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace attached.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// StructureError reports a flattened tree encoding that cannot be decoded:
// parallel arrays that are short, misaligned, or that do not terminate in a
// valid pre-order traversal.
type StructureError struct {
	Field  string
	Offset int
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("honestrf: malformed flat tree: field '%s' at offset %d: %s", e.Field, e.Offset, e.Reason)
}

// MarshalZerologObject adds the structured decoding context to a zerolog event.
func (e *StructureError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Int("offset", e.Offset).
		Str("reason", e.Reason).
		Str("type", "StructureError")
}

// NewStructureError creates a StructureError with a stack trace attached.
func NewStructureError(field string, offset int, reason string) error {
	err := &StructureError{Field: field, Offset: offset, Reason: reason}
	return errors.WithStack(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message, preserving the original chain.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message, preserving the original chain.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

var (
	// ErrEmptyData is returned when an empty index set or matrix is supplied.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a ridge system cannot be solved.
	ErrSingularMatrix = New("singular matrix")

	// ErrUnresolvedNADirection is returned when prediction hits a missing
	// value at a split whose default direction was never resolved.
	ErrUnresolvedNADirection = New("missing value at split with unresolved default direction")
)
