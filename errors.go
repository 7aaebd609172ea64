package statetab

import "fmt"

// ConfigError reports an invalid machine configuration. It is returned
// synchronously by the configuration methods and by Start when the
// validator finds a fatal violation.
type ConfigError struct {
	Op      string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error in %s(): %s", libName, e.Op, e.Message)
}

// newConfigError creates a ConfigError for the named operation.
func newConfigError(op string, format string, args ...any) *ConfigError {
	return &ConfigError{
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// RuntimeError reports an illegal run-time operation: starting a running
// machine, stopping a stopped one, processing events before Start,
// activating an inner event that is wired nowhere, or a history file that
// cannot be opened.
type RuntimeError struct {
	Op      string
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: runtime error in %s(): %s", libName, e.Op, e.Message)
}

// newRuntimeError creates a RuntimeError for the named operation.
func newRuntimeError(op string, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	_, ok := err.(*ConfigError)
	return ok
}

// IsRuntimeError checks if an error is a RuntimeError.
func IsRuntimeError(err error) bool {
	_, ok := err.(*RuntimeError)
	return ok
}
