package mapping

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrConfiguration matches every *ConfigurationError.
var ErrConfiguration = errors.New("mapping configuration error")

// ErrNilInstance is returned when a walk is started from a nil instance.
var ErrNilInstance = errors.New("nil instance")

// ConfigurationError reports a mapping that cannot be applied to an instance:
// a missing or ambiguous identifier field, a null identifier, or a transform
// that is not registered. Type and Field name the declaration to fix.
type ConfigurationError struct {
	Type   reflect.Type
	Field  string
	Reason string
	Err    error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	where := "<unknown type>"
	if e.Type != nil {
		where = e.Type.String()
	}
	if e.Field != "" {
		where += "." + e.Field
	}
	msg := fmt.Sprintf("mapping: %s: %s", where, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(t reflect.Type, field, reason string, args ...any) *ConfigurationError {
	return &ConfigurationError{Type: t, Field: field, Reason: fmt.Sprintf(reason, args...)}
}
