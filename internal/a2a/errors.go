package a2a

import "fmt"

// ErrorKind classifies why an operation failed. The dispatcher and
// connection machines branch on Kind, not on error text.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindTimeout    ErrorKind = "timeout"
	KindHandler    ErrorKind = "handler"
	KindProtocol   ErrorKind = "protocol"
	KindTransport  ErrorKind = "transport"
	KindAuth       ErrorKind = "auth"      // TRANSPORT/AUTH - fatal, never retried
	KindTransient  ErrorKind = "transient" // TRANSPORT/TRANSIENT - retryable
	KindCapacity   ErrorKind = "capacity"
)

// Error wraps a failure with a taxonomy Kind so callers can branch on
// classification without parsing strings.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// defaulting to KindHandler for anything else - an unclassified failure
// is treated as a handler bug, not a protocol or transport fault.
func KindOf(err error) ErrorKind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return KindHandler
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
