package errors

import (
	"errors"
	"fmt"
)

var ErrConfiguration = fmt.Errorf("configuration error")
var ErrConversion = fmt.Errorf("conversion error")
var ErrNotFound = fmt.Errorf("not found")
var ErrNotMaterialized = fmt.Errorf("not materialized")
var ErrReferenceResolution = fmt.Errorf("reference resolution error")

type myError struct {
	msg    string
	target error
	cause  error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }
func (m myError) Unwrap() error        { return m.cause }

func NewConfigurationError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrConfiguration,
	}
}

func NewNotMaterializedError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotMaterialized,
	}
}

// NotFoundError is returned when a representation carries an identifier
// that does not match any record in the backing store
type NotFoundError struct {
	Mapper string
	ID     string
}

func NewNotFoundError(mapper, id string) error {
	return &NotFoundError{Mapper: mapper, ID: id}
}

func (nfe NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s record with id %s", nfe.Mapper, nfe.ID)
}

func (nfe NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConversionError wraps the cause of a failed conversion of a single field,
// or an internal fault while finalizing an entity
type ConversionError struct {
	Field string
	Value string
	cause error
}

func NewConversionError(field, value string, cause error) error {
	return &ConversionError{Field: field, Value: value, cause: cause}
}

func (ce ConversionError) Error() string {
	if ce.Field == "" {
		return fmt.Sprintf("conversion failed: %s", causeOf(ce.cause))
	}
	return fmt.Sprintf("failed to convert value %q of field %s: %s", ce.Value, ce.Field, causeOf(ce.cause))
}

func (ce ConversionError) Is(target error) bool { return target == ErrConversion }
func (ce ConversionError) Unwrap() error        { return ce.cause }

// ReferenceResolutionError wraps the cause of a failed resolution of an object reference
type ReferenceResolutionError struct {
	Field       string
	Target      string
	Placeholder string
	cause       error
}

func NewReferenceResolutionError(field, target, placeholder string, cause error) error {
	return &ReferenceResolutionError{Field: field, Target: target, Placeholder: placeholder, cause: cause}
}

func (rre ReferenceResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s reference %q of field %s: %s", rre.Target, rre.Placeholder, rre.Field, causeOf(rre.cause))
}

func (rre ReferenceResolutionError) Is(target error) bool { return target == ErrReferenceResolution }
func (rre ReferenceResolutionError) Unwrap() error        { return rre.cause }

func causeOf(err error) string {
	if err == nil {
		return "unknown cause"
	}
	return err.Error()
}

// IsNotFound reports whether err, or any error in its chain, is a NotFoundError
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
