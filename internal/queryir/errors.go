package queryir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes expression errors.
type ErrorCode string

const (
	// ErrCodeInvalidExpression indicates a tree that violates the grammar.
	ErrCodeInvalidExpression ErrorCode = "INVALID_EXPRESSION"

	// ErrCodePreconditionFailed indicates a contract violation by the
	// caller, such as rendering a null expression.
	ErrCodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"
)

// ExprError is returned when an expression can not be built or rendered.
//
// Both codes are programmer errors: they are never retried and are
// surfaced at the call site that broke the contract.
type ExprError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Offset is the byte offset in the parsed text, or -1 when the error
	// did not come from Parse.
	Offset int
}

// Error implements the error interface.
func (e *ExprError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s (offset %d)", e.Code, e.Message, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidExpression creates an INVALID_EXPRESSION error.
func NewInvalidExpression(format string, args ...any) *ExprError {
	return &ExprError{
		Code:    ErrCodeInvalidExpression,
		Message: fmt.Sprintf(format, args...),
		Offset:  -1,
	}
}

// NewPreconditionFailed creates a PRECONDITION_FAILED error.
func NewPreconditionFailed(format string, args ...any) *ExprError {
	return &ExprError{
		Code:    ErrCodePreconditionFailed,
		Message: fmt.Sprintf(format, args...),
		Offset:  -1,
	}
}

// IsInvalidExpression returns true if err is an INVALID_EXPRESSION error.
// Uses errors.As to handle wrapped errors.
func IsInvalidExpression(err error) bool {
	var ee *ExprError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeInvalidExpression
	}
	return false
}

// IsPreconditionFailed returns true if err is a PRECONDITION_FAILED error.
// Uses errors.As to handle wrapped errors.
func IsPreconditionFailed(err error) bool {
	var ee *ExprError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodePreconditionFailed
	}
	return false
}
