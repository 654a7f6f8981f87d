package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeTimeout            = "TIMEOUT"
	CodeUnavailable        = "SERVICE_UNAVAILABLE"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeOwnershipViolation = "OWNERSHIP_VIOLATION"
	CodePaymentNotReady    = "PAYMENT_NOT_READY"
	CodePaymentFailed      = "PAYMENT_FAILED"
	CodeAmountMismatch     = "AMOUNT_MISMATCH"
	CodeProviderError      = "PAYMENT_PROVIDER_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeBadGateway         = "BAD_GATEWAY"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(e.Response())
	return data
}

func (e *AppError) Response() ErrorResponse {
	return ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NotFoundWithID(resource, id string) *AppError {
	return NotFound(resource).WithDetails(map[string]any{
		"resource": resource,
		"id":       id,
	})
}

func Validation(message string, details map[string]any) *AppError {
	return New(CodeValidation, message, http.StatusUnprocessableEntity).WithDetails(details)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func Internal(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

func Timeout(message string) *AppError {
	return New(CodeTimeout, message, http.StatusGatewayTimeout)
}

func Unavailable(service string) *AppError {
	return New(CodeUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

func BadGateway(message string, err error) *AppError {
	return Wrap(err, CodeBadGateway, message, http.StatusBadGateway)
}

// OwnershipViolation is returned when a booking is bound to another user.
func OwnershipViolation(resource, id string) *AppError {
	return New(CodeOwnershipViolation, fmt.Sprintf("%s belongs to another user", resource), http.StatusForbidden).
		WithDetails(map[string]any{"resource": resource, "id": id})
}

func PaymentNotReady(status string) *AppError {
	return New(CodePaymentNotReady, "Payment not ready", http.StatusBadRequest).
		WithDetails(map[string]any{"intent_status": status})
}

func PaymentFailed(status string) *AppError {
	return New(CodePaymentFailed, "Payment failed", http.StatusPaymentRequired).
		WithDetails(map[string]any{"intent_status": status})
}

func AmountMismatch(expectedMinor, chargedMinor int64) *AppError {
	return New(CodeAmountMismatch, "Amount mismatch", http.StatusBadRequest).
		WithDetails(map[string]any{
			"expected_minor": expectedMinor,
			"charged_minor":  chargedMinor,
		})
}

func ProviderError(err error) *AppError {
	return Wrap(err, CodeProviderError, "Payment provider error", http.StatusBadGateway)
}

func RateLimited(retryAfterSeconds int) *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests).
		WithDetails(map[string]any{"retry_after": retryAfterSeconds})
}

func PayloadTooLarge(limit int64) *AppError {
	return New(CodePayloadTooLarge, "Payload too large", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]any{"max_bytes": limit})
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
