package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNegativeValue   = errors.New("value must be >= 0")
	ErrUnparsableValue = errors.New("value is not a number")
	// ErrMappingType is returned when a mutation source is neither a mapping nor an Amount.
	ErrMappingType = errors.New("mapping or currency amount required")
)

// ValidationError reports a rejected write to a single field. The field keeps its previous value.
type ValidationError struct {
	Field Denomination
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v (got %v)", e.Field, e.Err, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors collects the rejected fields of one bulk mutation.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrNegativeValue or ErrUnparsableValue through the group.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v))
	for _, e := range v {
		errs = append(errs, e)
	}
	return errs
}

// Fields maps each rejected field to a short reason.
func (v ValidationErrors) Fields() map[string]string {
	fields := make(map[string]string, len(v))
	for _, e := range v {
		fields[string(e.Field)] = fmt.Sprintf("%s %v", e.Field, e.Err)
	}
	return fields
}

// Names returns the rejected field names sorted.
func (v ValidationErrors) Names() []string {
	names := make([]string, 0, len(v))
	for _, e := range v {
		names = append(names, string(e.Field))
	}
	sort.Strings(names)
	return names
}

// orNil avoids returning a typed nil inside an error interface.
func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
