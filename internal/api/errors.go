package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sihhaapp/sihha/internal/apperr"
	"github.com/sihhaapp/sihha/internal/database"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(code, message string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Code:       code,
		Message:    message,
	}
}

func NewInvalidBodyError() *ApiError {
	return NewBadRequestError("invalid-request", "request body is not valid JSON")
}

func NewNotFoundError(code, message string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Code:       code,
		Message:    message,
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Code:       "internal-error",
		Message:    "internal server error",
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Code:       "unauthorized",
		Message:    "authentication required",
	}
}

func NewForbiddenError(code, message string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Code:       code,
		Message:    message,
	}
}

func NewConflictError(code, message string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Code:       code,
		Message:    message,
	}
}

var (
	errInvalidCredential = &ApiError{StatusCode: http.StatusUnauthorized, Code: "invalid-credential", Message: "invalid credentials"}
	errAccountDisabled   = NewForbiddenError("account-disabled", "this account has been disabled")
	errAdminRequired     = NewForbiddenError("forbidden", "admin access required")
	errUserNotFound      = NewNotFoundError("user-not-found", "user not found")
	errPhoneInUse        = NewConflictError("phone-already-in-use", "phone number already used")
)

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fromError maps a core or storage error onto the HTTP contract.
func fromError(err error) *ApiError {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := statusFor(ae.Kind)
		if status == http.StatusInternalServerError {
			return NewInternalServerError(err)
		}
		return &ApiError{StatusCode: status, Code: ae.Code, Message: ae.Message, Err: ae.Err}
	}

	if errors.Is(err, database.ErrNotFound) {
		return NewNotFoundError("not-found", "not found")
	}

	return NewInternalServerError(err)
}
