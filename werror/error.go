package werror

import "fmt"

// Error is the error type used across warden for failures that originate
// inside the gateway itself rather than in the protocol library.
type Error struct {
	Msg   string
	Cause error
}

func New(msg string) *Error {
	return &Error{Msg: msg}
}

func Newf(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause so callers can still match it with errors.Is/As.
func Wrap(msg string, cause error) *Error {
	return &Error{Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}
