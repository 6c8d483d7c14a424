package pkg

import (
	"errors"
	"strings"
)

// ConfigError records an error produced while loading or validating configuration,
// either from environment variables or from a model file.
type ConfigError struct {
	Message string
	Err     error
}

// NewConfigError creates an instance of ConfigError.
func NewConfigError(message string, err error) ConfigError {
	return ConfigError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface.
func (e ConfigError) Error() string {
	if strings.TrimSpace(e.Message) == "" && e.Err != nil {
		return e.Err.Error()
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e ConfigError) Unwrap() error {
	return e.Err
}

// BrokerError records an error raised by the message broker layer: connection
// failures, publish/consume failures and pool acquisition timeouts.
type BrokerError struct {
	Op      string
	Message string
	Err     error
}

// NewBrokerError creates an instance of BrokerError.
func NewBrokerError(op, message string) BrokerError {
	return BrokerError{
		Op:      op,
		Message: message,
	}
}

// WrapBrokerError creates an instance of BrokerError wrapping a cause.
func WrapBrokerError(op string, err error) BrokerError {
	return BrokerError{
		Op:  op,
		Err: err,
	}
}

// Error implements the error interface.
func (e BrokerError) Error() string {
	if strings.TrimSpace(e.Message) == "" && e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}

	if strings.TrimSpace(e.Op) != "" {
		return e.Op + ": " + e.Message
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e BrokerError) Unwrap() error {
	return e.Err
}

// IsBrokerError reports whether err is a BrokerError anywhere in its chain.
func IsBrokerError(err error) bool {
	var be BrokerError
	return errors.As(err, &be)
}
