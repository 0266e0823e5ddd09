package apperrors

import "strings"

// appError implements the apperrors.Error interface. Package level error
// values are shared, so every mutating method returns a copy derived from
// the receiver instead of changing it in place.
type appError struct {
	msg           string
	base          *appError
	wrappedErrors []error
	statuscode    int
	expandError   bool
	prefix        string
}

func (e *appError) Error() string {
	if e.prefix != "" {
		return e.prefix + ": " + e.msg
	}
	return e.msg
}

// ErrorAll returns the message followed by the messages of the wrapped errors
// when expansion is enabled.
func (e *appError) ErrorAll() string {
	if !e.expandError || len(e.wrappedErrors) == 0 {
		return e.Error()
	}
	msgs := make([]string, 0, len(e.wrappedErrors))
	for _, err := range e.wrappedErrors {
		msgs = append(msgs, err.Error())
	}
	return e.Error() + ": " + strings.Join(msgs, ";")
}

func (e *appError) Unwrap() []error {
	return e.wrappedErrors
}

func (e *appError) clone() *appError {
	c := *e
	c.wrappedErrors = append([]error(nil), e.wrappedErrors...)
	return &c
}

// New derives a new error kind from e. The result matches e with errors.Is.
func (e *appError) New(msg string) Error {
	return &appError{
		msg:         msg,
		statuscode:  e.statuscode,
		expandError: e.expandError,
		base:        e,
	}
}

// Msg returns an instance of e with the message replaced.
func (e *appError) Msg(msg string) Error {
	c := e.instance()
	c.msg = msg
	return c
}

func (e *appError) Prefix(prefix string) Error {
	c := e.instance()
	c.prefix = prefix
	return c
}

func (e *appError) MsgErr(msg string, err ...error) Error {
	c := e.instance()
	c.msg = msg
	c.wrappedErrors = append(c.wrappedErrors, err...)
	return c
}

func (e *appError) Err(err ...error) Error {
	c := e.instance()
	c.wrappedErrors = append(c.wrappedErrors, err...)
	return c
}

// instance returns a copy whose base is e, so the copy still matches e.
func (e *appError) instance() *appError {
	c := e.clone()
	c.base = e
	return c
}

func (e *appError) Is(target error) bool {
	if t, ok := target.(*appError); ok {
		for cur := e; cur != nil; cur = cur.base {
			if cur == t {
				return true
			}
		}
	}
	for _, err := range e.wrappedErrors {
		if err == target {
			return true
		}
	}
	return false
}

// SetExpandError and SetStatusCode are meant for package level declarations
// and keep e's identity.
func (e *appError) SetExpandError(expand bool) Error {
	e.expandError = expand
	return e
}

func (e *appError) SetStatusCode(code int) Error {
	e.statuscode = code
	return e
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func New(msg string) Error {
	return &appError{
		msg: msg,
	}
}
