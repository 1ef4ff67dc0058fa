package httpdto

import (
	"errors"
	"net/http"

	apperrors "gigchat/pkg/errors"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// ErrorCode maps the shared sentinel errors onto the wire codes and HTTP
// statuses clients key off. Unmapped errors are reported as internal.
func ErrorCode(err error) (status int, code string) {
	switch {
	case errors.Is(err, apperrors.ErrAuthRequired):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, apperrors.ErrNotParticipant):
		return http.StatusForbidden, "NOT_PARTICIPANT"
	case errors.Is(err, apperrors.ErrNotSender):
		return http.StatusForbidden, "NOT_SENDER"
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrSelfConversation):
		return http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// FromError builds the error envelope for err using ErrorCode's mapping.
func FromError(err error) (int, Response[any]) {
	status, code := ErrorCode(err)
	return status, NewErrorResponse(err.Error(), code)
}
