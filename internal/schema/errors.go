package schema

import (
	"fmt"
	"strings"
)

// Validation error codes (E200-E299)
const (
	ErrNotAMap         = "E200" // descriptor is not a map
	ErrMissingName     = "E201" // name missing or not a string
	ErrMissingType     = "E202" // type missing or not a string
	ErrInvalidType     = "E203" // type is not table or index
	ErrMissingColumns  = "E204" // columns missing or not an array
	ErrColumnsShape    = "E205" // columns array is not uniform / wrong element kind
	ErrInvalidColumn   = "E206" // column pair is malformed
	ErrDuplicateColumn = "E207" // column name repeated in a table
	ErrMissingTable    = "E208" // index without a table reference
	ErrUnknownTable    = "E209" // index references an undefined table
	ErrUnknownColumn   = "E210" // index column not defined on its table
	ErrNotAnArray      = "E211" // object list is not an array
	ErrInvalidPreserve = "E212" // preserve_existing is not a boolean
	ErrDuplicateObject = "E213" // two objects share a name
)

// ValidationError describes a single problem found in a descriptor.
// Error returns only the message so joined messages read naturally.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return e.Message
}

// String includes the code and field, for diagnostics.
func (e ValidationError) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

func newError(code, field, format string, args ...any) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// FormatErrors joins the messages of a single descriptor's errors with ", ".
func FormatErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, ", ")
}
