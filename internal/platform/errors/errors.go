// Package errors provides the service's coded application errors.
//
// Handlers translate an AppError's Code into a transport status; everything
// else that reaches a handler is reported as INTERNAL with a generic message.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// ErrorCode classifies an application error.
type ErrorCode string

const (
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeUnavailable      ErrorCode = "UNAVAILABLE"
	ErrCodeDispatchFailed   ErrorCode = "DISPATCH_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL"
)

// AppError is an error carrying a code and optional structured details.
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Details any
	Err     error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

// New creates an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap annotates err with a code and message.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// InvalidInput reports a malformed request field.
func InvalidInput(field, message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Field: field, Message: message}
}

// Validation reports business-rule violations; details holds the field errors.
func Validation(details any) *AppError {
	return &AppError{Code: ErrCodeValidationFailed, Message: "Validation failed", Details: details}
}

// Unauthorized reports an unknown or invalid account.
func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message}
}

// Forbidden reports a role that may not perform the operation.
func Forbidden(message string) *AppError {
	return &AppError{Code: ErrCodeForbidden, Message: message}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// Unavailable reports a transient dependency failure.
func Unavailable(message string, err error) *AppError {
	return &AppError{Code: ErrCodeUnavailable, Message: message, Err: err}
}

// DispatchFailed reports that a downstream sink rejected or failed a call.
func DispatchFailed(sink string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeDispatchFailed,
		Message: fmt.Sprintf("forwarding to %s failed", sink),
		Details: sink,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or INTERNAL.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeInvalidInput, ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeDispatchFailed:
		return http.StatusBadGateway
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps an error to a gRPC status code.
func GRPCCode(err error) codes.Code {
	switch CodeOf(err) {
	case ErrCodeInvalidInput, ErrCodeValidationFailed:
		return codes.InvalidArgument
	case ErrCodeUnauthorized:
		return codes.Unauthenticated
	case ErrCodeForbidden:
		return codes.PermissionDenied
	case ErrCodeNotFound:
		return codes.NotFound
	case ErrCodeDispatchFailed, ErrCodeUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }
