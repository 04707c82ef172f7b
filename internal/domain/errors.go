// Package domain defines core types, interfaces, and errors for the cohort aggregation engine.
package domain

import "fmt"

// NotFoundError indicates unknown dataset, table, or column metadata.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input: malformed identifiers, non-finite
// or missing numeric values, wrong operand arity, or unsupported operators.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RelationshipError indicates that no usable relationship path exists
// between two tables, or that a path uses a direction the caller cannot
// count through.
type RelationshipError struct {
	From    string
	To      string
	Message string
}

func (e *RelationshipError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrRelationship creates a RelationshipError between two tables.
func ErrRelationship(from, to, format string, args ...interface{}) *RelationshipError {
	return &RelationshipError{From: from, To: to, Message: fmt.Sprintf(format, args...)}
}

// ConflictError indicates that a resource with the same unique name exists.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
