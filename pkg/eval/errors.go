package eval

import (
	"errors"
	"fmt"
	"time"

	"github.com/varpsim/varp/pkg/constant"
)

// ExpressionError records a syntactic or allow-list violation in an
// expression payload, or an unknown name at evaluation time. Terminal: the
// same payload will fail the same way on every retry.
type ExpressionError struct {
	Message string
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	return "expression error: " + e.Message
}

// SecurityError records a sandbox violation in a code payload: a rejected
// construct, or a load of a module outside the whitelist. Terminal.
type SecurityError struct {
	Message string
}

// Error implements the error interface.
func (e *SecurityError) Error() string {
	return "security error: " + e.Message
}

// TimeoutError records a code payload exceeding its wall-clock budget.
// Terminal: the run was abandoned.
type TimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution exceeded the timeout of %s", e.Timeout)
}

// MissingResultError records a code payload that completed without assigning
// the result name. Terminal.
type MissingResultError struct {
	Name string
}

// Error implements the error interface.
func (e *MissingResultError) Error() string {
	return fmt.Sprintf("variable '%s' not found after execution", e.Name)
}

// ArithmeticError records a numeric failure while evaluating a payload:
// division by zero, a domain violation, an overflowing operation. Recoverable
// at the consumer layer: different bindings may succeed.
type ArithmeticError struct {
	Message string
}

// Error implements the error interface.
func (e *ArithmeticError) Error() string {
	return "arithmetic error: " + e.Message
}

// Classify maps an evaluation error to its wire kind and whether it is
// terminal. Unknown errors are transient.
func Classify(err error) (kind string, terminal bool) {
	var (
		exprErr    *ExpressionError
		secErr     *SecurityError
		timeoutErr *TimeoutError
		missingErr *MissingResultError
		arithErr   *ArithmeticError
	)

	switch {
	case errors.As(err, &exprErr):
		return constant.KindExpressionError, true
	case errors.As(err, &secErr):
		return constant.KindSecurityError, true
	case errors.As(err, &timeoutErr):
		return constant.KindTimeoutError, true
	case errors.As(err, &missingErr):
		return constant.KindMissingResultError, true
	case errors.As(err, &arithErr):
		return constant.KindArithmeticError, false
	}

	return constant.KindTransientError, false
}
