package httpserver

import (
	"errors"
	"net/http"

	"gatherly-backend/internal/docstore"
)

type ErrorCode string

const (
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodeUnavailable      ErrorCode = "UNAVAILABLE"
	ErrCodeTokenInvalid     ErrorCode = "TOKEN_INVALID"
	ErrCodeCannotFriendSelf ErrorCode = "CANNOT_FRIEND_SELF"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

var errorHTTPStatus = map[ErrorCode]int{
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodePermissionDenied: http.StatusForbidden,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeCannotFriendSelf: http.StatusBadRequest,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
	ErrCodeInternal:         http.StatusInternalServerError,
}

func httpStatusForCode(code ErrorCode) int {
	if status, ok := errorHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// codeAndMessage maps a domain error to an API code and a short generic
// message. Internal store error text is never surfaced to the client.
func codeAndMessage(err error) (ErrorCode, string) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return ErrCodeNotFound, "not found"
	case errors.Is(err, docstore.ErrUnavailable):
		return ErrCodeUnavailable, "service temporarily unavailable"
	case errors.Is(err, docstore.ErrPermissionDenied):
		return ErrCodePermissionDenied, "permission denied"
	default:
		return ErrCodeInternal, "something went wrong"
	}
}
