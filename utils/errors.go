package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected interface{}, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}

// NewConfigValidationError returns an error specifying that the config at path is invalid.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

// NewConfigValidationFieldRequiredError returns an error specifying that a config field is
// required but was missing.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return NewConfigValidationError(path, errors.Errorf("%q is required", field))
}

// NewOutOfRangeError returns an error signifying that a config field is outside [lo, hi].
func NewOutOfRangeError(path, field string, value interface{}, lo, hi interface{}) error {
	return NewConfigValidationError(path, errors.Errorf("%q must be in [%v, %v], got %v", field, lo, hi, value))
}
