package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a PagegenError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *PagegenError {
	if err == nil {
		return nil
	}

	// If it's already a PagegenError, preserve its location but update the message
	var te *PagegenError
	if errors.As(err, &te) {
		return &PagegenError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       err,
			Context:     te.Context,
			Component:   te.Component,
			FilePath:    te.FilePath,
			Line:        te.Line,
			Column:      te.Column,
			Recoverable: te.Recoverable,
		}
	}

	return &PagegenError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeMacro,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, path, message string) *PagegenError {
	templErr := Wrap(err, ErrorTypeIO, ErrCodeIO, message)
	if templErr != nil {
		templErr.FilePath = path
		templErr.Recoverable = false
	}
	return templErr
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, message string) *PagegenError {
	templErr := Wrap(err, ErrorTypeInternal, ErrCodeInternalError, message)
	if templErr != nil {
		templErr.Recoverable = false
	}
	return templErr
}

// GetErrorChain returns all errors in the chain from outermost to innermost.
// Joined errors are walked depth first.
func GetErrorChain(err error) []error {
	var chain []error
	var walk func(error)
	walk = func(err error) {
		for err != nil {
			chain = append(chain, err)
			switch x := err.(type) {
			case interface{ Unwrap() []error }:
				for _, e := range x.Unwrap() {
					walk(e)
				}
				return
			case interface{ Unwrap() error }:
				err = x.Unwrap()
			default:
				return
			}
		}
	}
	walk(err)
	return chain
}

// HasErrorType checks if any error in the chain has the specified type
func HasErrorType(err error, errType ErrorType) bool {
	for _, e := range GetErrorChain(err) {
		if te, ok := e.(*PagegenError); ok && te.Type == errType {
			return true
		}
	}
	return false
}

// Is and As mirror the standard library so callers importing this package
// under its usual name do not need a second import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// New mirrors errors.New.
func New(text string) error { return errors.New(text) }
