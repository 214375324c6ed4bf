package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"

	// Registration/payment correlation codes. These are stable and part of the
	// public API contract.
	ErrValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrAlreadyRegistered      ErrorCode = "ALREADY_REGISTERED"
	ErrPaymentNotCompleted    ErrorCode = "PAYMENT_NOT_COMPLETED"
	ErrPaymentIntentNotLocked ErrorCode = "PAYMENT_INTENT_NOT_LOCKED"
	ErrCorrelationMismatch    ErrorCode = "CORRELATION_MISMATCH"
	ErrDataCorruption         ErrorCode = "DATA_CORRUPTION_DETECTED"
	ErrRegistrationCreation   ErrorCode = "REGISTRATION_CREATION_FAILED"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsCode reports whether err is an APIError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	apiErr, ok := err.(APIError)
	return ok && apiErr.Code == code
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrAlreadyRegistered:
			return http.StatusConflict
		case ErrInvalidInput, ErrBadRequest, ErrValidationFailed:
			return http.StatusBadRequest
		case ErrPaymentNotCompleted:
			return http.StatusAccepted
		case ErrPaymentIntentNotLocked, ErrCorrelationMismatch, ErrDataCorruption, ErrRegistrationCreation:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
