package errors

import stderrors "errors"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs and model-facing bags)
	Metadata map[string]string // Additional context, e.g. the offending input
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface. A wrapped cause is appended to the
// message so logs keep the upstream detail.
func (e *Error) Error() string {
	switch {
	case e.Cause == nil:
		return e.Message
	case e.Message == "":
		return e.Cause.Error()
	default:
		return e.Message + ": " + e.Cause.Error()
	}
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error carrying extra context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first domain error in err's chain, or
// CodeUnknown when there is none.
func CodeOf(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// Bag renders err as the structured error result handed back to the model.
// Domain errors keep their code and metadata; anything else is reported as
// UNKNOWN with its text.
func Bag(err error) map[string]any {
	if err == nil {
		return nil
	}
	bag := map[string]any{
		"error": err.Error(),
		"code":  string(CodeOf(err)),
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		for key, value := range domainErr.Metadata {
			bag[key] = value
		}
	}
	return bag
}
