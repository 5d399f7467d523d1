package config

import (
	"fmt"
	"strings"

	"github.com/roach88/lookupcache/internal/schema"
)

// Validation error codes (E300-E399)
const (
	ErrNotAMap        = "E300" // descriptor is not a map
	ErrMissingField   = "E301" // required field missing
	ErrWrongType      = "E302" // field has the wrong type
	ErrNotAnArray     = "E303" // list option is not an array
	ErrDuplicateID    = "E304" // two descriptors share an id or table
	ErrInvalidCron    = "E305" // schedule is not a cron expression
	ErrLoadFailed     = "E306" // configuration file could not be decoded
	ErrUnknownSection = "E307" // unrecognized top level key
)

// ValidationError describes one problem in a descriptor.
type ValidationError = schema.ValidationError

func newError(code, field, format string, args ...any) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// DescriptorError groups every problem found in one descriptor of a section.
// Index is -1 for problems that concern the section as a whole.
type DescriptorError struct {
	Section string
	Index   int
	Errs    []error
}

func (e *DescriptorError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Section, schema.FormatErrors(e.Errs))
	}
	return fmt.Sprintf("%s[%d]: %s", e.Section, e.Index, schema.FormatErrors(e.Errs))
}

func (e *DescriptorError) Unwrap() []error {
	return e.Errs
}

// FormatErrors joins descriptor errors with "; ".
func FormatErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
