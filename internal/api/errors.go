package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/darestream/darestream/internal/dares"
	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/media"
	"github.com/darestream/darestream/internal/stream"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
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

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

func NewPaymentRequiredError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusPaymentRequired,
		Message:    msg,
	}
}

func NewConflictError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    msg,
	}
}

func NewBadGatewayError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadGateway,
		Message:    msg,
	}
}

// domainError translates a domain sentinel into the HTTP error for it.
func domainError(err error) *ApiError {
	switch {
	case errors.Is(err, stream.ErrNotFound), errors.Is(err, dares.ErrNotFound),
		errors.Is(err, dares.ErrGoalNotFound):
		return NewNotFoundError()
	case errors.Is(err, stream.ErrAlreadyLive), errors.Is(err, stream.ErrSessionEnded):
		return NewConflictError(err.Error())
	case errors.Is(err, stream.ErrNotHost), errors.Is(err, dares.ErrNotHost):
		return NewForbiddenError()
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return NewPaymentRequiredError(err.Error())
	case errors.Is(err, ErrPaymentFailed):
		return NewPaymentRequiredError(err.Error())
	case errors.Is(err, media.ErrUnavailable):
		return NewBadGatewayError(err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		return NewBadRequestError()
	default:
		return NewInternalServerError(err)
	}
}
