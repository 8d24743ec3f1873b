// Package errors defines the structured error taxonomy used across pagegen.
//
// Route compilation errors are fatal for a generation pass, macro extraction
// errors degrade a single page to meta-less, template errors are aggregated
// per batch and hook errors abort the remaining callbacks of one invocation.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeRoute    ErrorType = "route"
	ErrorTypeMacro    ErrorType = "macro"
	ErrorTypeTemplate ErrorType = "template"
	ErrorTypeHook     ErrorType = "hook"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeMalformedSegment = "ERR_MALFORMED_SEGMENT"
	ErrCodeDuplicateRoute   = "ERR_DUPLICATE_ROUTE"
	ErrCodeAmbiguousRoute   = "ERR_AMBIGUOUS_ROUTE"
	ErrCodeMacroExtraction  = "ERR_MACRO_EXTRACTION"
	ErrCodeTemplateRender   = "ERR_TEMPLATE_RENDER"
	ErrCodeHookCallback     = "ERR_HOOK_CALLBACK"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeIO               = "ERR_IO"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Sentinels for errors.Is comparisons. Matching is by type and code only.
var (
	ErrMalformedSegment = &PagegenError{Type: ErrorTypeRoute, Code: ErrCodeMalformedSegment}
	ErrDuplicateRoute   = &PagegenError{Type: ErrorTypeRoute, Code: ErrCodeDuplicateRoute}
	ErrAmbiguousRoute   = &PagegenError{Type: ErrorTypeRoute, Code: ErrCodeAmbiguousRoute}
	ErrMacroExtraction  = &PagegenError{Type: ErrorTypeMacro, Code: ErrCodeMacroExtraction}
	ErrTemplateRender   = &PagegenError{Type: ErrorTypeTemplate, Code: ErrCodeTemplateRender}
	ErrHookCallback     = &PagegenError{Type: ErrorTypeHook, Code: ErrCodeHookCallback}
	ErrConfigInvalid    = &PagegenError{Type: ErrorTypeConfig, Code: ErrCodeConfigInvalid}
)

// PagegenError is a structured error type with context.
type PagegenError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *PagegenError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PagegenError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PagegenError) Is(target error) bool {
	var t *PagegenError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithComponent adds component context.
func (e *PagegenError) WithComponent(component string) *PagegenError {
	e.Component = component

	return e
}

// NewMalformedSegmentError reports bracket syntax that cannot be classified.
func NewMalformedSegmentError(file, segment, reason string) *PagegenError {
	return &PagegenError{
		Type:     ErrorTypeRoute,
		Code:     ErrCodeMalformedSegment,
		Message:  fmt.Sprintf("malformed route segment %q: %s", segment, reason),
		FilePath: file,
		Context:  map[string]interface{}{"segment": segment},
	}
}

// NewDuplicateRouteError reports two entries resolving to the same pattern at
// one tree position.
func NewDuplicateRouteError(path string, files ...string) *PagegenError {
	return &PagegenError{
		Type:     ErrorTypeRoute,
		Code:     ErrCodeDuplicateRoute,
		Message:  fmt.Sprintf("duplicate route %s defined by %s", path, strings.Join(files, ", ")),
		FilePath: firstOf(files),
		Context:  map[string]interface{}{"path": path, "files": files},
	}
}

// NewAmbiguousRouteError reports catch-all misuse.
func NewAmbiguousRouteError(path, reason string, files ...string) *PagegenError {
	return &PagegenError{
		Type:     ErrorTypeRoute,
		Code:     ErrCodeAmbiguousRoute,
		Message:  fmt.Sprintf("ambiguous route %s: %s", path, reason),
		FilePath: firstOf(files),
		Context:  map[string]interface{}{"path": path, "files": files},
	}
}

// NewMacroExtractionError reports a macro call that could not be statically
// extracted. Callers treat the page as meta-less.
func NewMacroExtractionError(file string, line, column int, reason string) *PagegenError {
	return &PagegenError{
		Type:        ErrorTypeMacro,
		Code:        ErrCodeMacroExtraction,
		Message:     reason,
		FilePath:    file,
		Line:        line,
		Column:      column,
		Recoverable: true,
	}
}

// NewTemplateRenderError identifies a failed descriptor by its destination.
func NewTemplateRenderError(destination string, cause error) *PagegenError {
	return &PagegenError{
		Type:     ErrorTypeTemplate,
		Code:     ErrCodeTemplateRender,
		Message:  "failed to render " + destination,
		Cause:    cause,
		FilePath: destination,
	}
}

// NewHookCallbackError identifies the failing registration of a hook.
func NewHookCallbackError(hook string, ordinal int, cause error) *PagegenError {
	return &PagegenError{
		Type:    ErrorTypeHook,
		Code:    ErrCodeHookCallback,
		Message: fmt.Sprintf("hook %q callback #%d failed", hook, ordinal),
		Cause:   cause,
		Context: map[string]interface{}{"hook": hook, "ordinal": ordinal},
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(setting, message string) *PagegenError {
	return &PagegenError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: fmt.Sprintf("%s: %s", setting, message),
		Context: map[string]interface{}{"setting": setting},
	}
}

func firstOf(files []string) string {
	if len(files) == 0 {
		return ""
	}
	return files[0]
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *PagegenError
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsRouteError checks if an error comes from route compilation.
func IsRouteError(err error) bool {
	return HasErrorType(err, ErrorTypeRoute)
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error according to its type. Recoverable errors are logged
// as warnings, everything else as errors.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var te *PagegenError
	if !errors.As(err, &te) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch te.Type {
	case ErrorTypeMacro:
		h.logger.Warn(ctx, err, "Page metadata ignored",
			"code", te.Code,
			"file", te.FilePath,
			"line", te.Line)
	case ErrorTypeRoute:
		h.logger.Error(ctx, err, "Route compilation failed",
			"code", te.Code,
			"file", te.FilePath)
	case ErrorTypeTemplate:
		h.logger.Error(ctx, err, "Template rendering failed",
			"code", te.Code,
			"destination", te.FilePath)
	default:
		if te.Recoverable {
			h.logger.Warn(ctx, err, "Error occurred", "type", te.Type, "code", te.Code)
			return
		}
		h.logger.Error(ctx, err, "Error occurred", "type", te.Type, "code", te.Code)
	}
}
