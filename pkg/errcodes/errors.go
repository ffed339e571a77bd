package errcodes

import "errors"

type Error struct {
	Message string
	Code    string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Message == err.Message &&
		te.Code == err.Code
}

// NotFound returns an error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		resource + " not found.",
		"not_found",
	}
}

// Conflict returns an error indicating a uniqueness or concurrency conflict
// on the given resource.
func Conflict(resource string) error {
	return &Error{
		resource + " already exists.",
		"conflict",
	}
}

// IsConflict reports whether err carries the conflict code, regardless of
// which resource raised it.
func IsConflict(err error) bool {
	e := &Error{}
	return errors.As(err, &e) && e.Code == "conflict"
}

// IsNotFound reports whether err carries the not-found code.
func IsNotFound(err error) bool {
	e := &Error{}
	return errors.As(err, &e) && e.Code == "not_found"
}
