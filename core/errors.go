package core

import "github.com/pkg/errors"

// FieldError reports one rejected input field. Field is the JSON name, possibly prefixed
// with the position of the item in a batch ("2.period") or of the row in an import ("line 3: day").
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when input is rejected before any allocation is attempted.
// Either Err describes the input as a whole (e.g. an empty batch), or Fields lists the rejected fields.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// Error returns Err's message, or the first field error when there is no Err.
func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// shutdown marks errors after which the store can no longer be trusted; the API stops serving on them.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
