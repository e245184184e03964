package errors

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
)

type Code int

const (
	InvalidObjectKey     Code = 105
	ForbiddenOperation   Code = 119
	MissingConfiguration Code = 400
	InvalidCredentials   Code = 401
	ObjectNotFound       Code = 404
	InternalServerError  Code = 500
)

func (c Code) String() string {
	switch c {
	case InvalidObjectKey:
		return "InvalidObjectKey"
	case ForbiddenOperation:
		return "ForbiddenOperation"
	case MissingConfiguration:
		return "MissingConfiguration"
	case InvalidCredentials:
		return "InvalidCredentials"
	case ObjectNotFound:
		return "ObjectNotFound"
	case InternalServerError:
		return "InternalServerError"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

var ErrInvalidObjectKey = fmt.Errorf("invalid object key")
var ErrForbiddenOperation = fmt.Errorf("forbidden operation")
var ErrMissingConfiguration = fmt.Errorf("missing configuration")

var ErrBadRequest = fmt.Errorf("bad request")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrForbidden = fmt.Errorf("forbidden")
var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrUnauthorized = fmt.Errorf("unauthorized")

// WarpError is raised synchronously by the object layer itself
type WarpError struct {
	Code    Code
	Message string
}

func (e *WarpError) Error() string {
	return e.Message
}

func (e *WarpError) Is(target error) bool {
	switch e.Code {
	case InvalidObjectKey:
		return target == ErrInvalidObjectKey
	case ForbiddenOperation:
		return target == ErrForbiddenOperation
	case MissingConfiguration:
		return target == ErrMissingConfiguration
	}
	return false
}

func New(code Code, msg string) error {
	return &WarpError{
		Code:    code,
		Message: msg,
	}
}

func NewForbiddenOperationError(msg string) error {
	return New(ForbiddenOperation, msg)
}

func NewInvalidObjectKeyError(msg string) error {
	return New(InvalidObjectKey, msg)
}

func NewMissingConfigurationError(msg string) error {
	return New(MissingConfiguration, msg)
}

// RemoteError is an error reported by a Warp server
type RemoteError struct {
	Status  int
	Code    Code
	Message string
	target  error
}

func (re RemoteError) Error() string {
	return fmt.Sprintf("[status: %d] %s", re.Status, re.Message)
}

func (re RemoteError) Is(target error) bool { return target == re.target }

func newRemoteError(status int, code Code, msg string, target error) error {
	return &RemoteError{
		Status:  status,
		Code:    code,
		Message: msg,
		target:  target,
	}
}

func NewBadRequestError(msg string) error {
	return newRemoteError(http.StatusBadRequest, InvalidObjectKey, msg, ErrBadRequest)
}

func NewUnauthorizedError(msg string) error {
	return newRemoteError(http.StatusUnauthorized, InvalidCredentials, msg, ErrUnauthorized)
}

func NewForbiddenError(msg string) error {
	return newRemoteError(http.StatusForbidden, ForbiddenOperation, msg, ErrForbidden)
}

func NewNotFoundError(msg string) error {
	return newRemoteError(http.StatusNotFound, ObjectNotFound, msg, ErrNotFound)
}

func NewInternalError(msg string) error {
	return newRemoteError(http.StatusInternalServerError, InternalServerError, msg, ErrInternal)
}

// NewErrorFromResponse turns an error response from a Warp server into a RemoteError
func NewErrorFromResponse(statusCode int, body []byte) error {
	report := &struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}{}

	err := json.Unmarshal(body, report)
	if err != nil || report.Message == "" {
		report.Message = http.StatusText(statusCode)
	}

	var target error

	switch {
	case statusCode == http.StatusBadRequest:
		target = ErrBadRequest
	case statusCode == http.StatusUnauthorized:
		target = ErrUnauthorized
	case statusCode == http.StatusForbidden:
		target = ErrForbidden
	case statusCode == http.StatusNotFound:
		target = ErrNotFound
	case statusCode >= http.StatusInternalServerError:
		target = ErrInternal
	default:
		target = ErrBadRequest
	}

	code := Code(report.Code)
	if code == 0 {
		code = Code(statusCode)
	}

	return newRemoteError(statusCode, code, report.Message, target)
}

// StatusCode returns the HTTP status that should be used when reporting err to a client
func StatusCode(err error) int {
	var re *RemoteError
	if As(err, &re) {
		return re.Status
	}

	var we *WarpError
	if As(err, &we) {
		switch we.Code {
		case ForbiddenOperation:
			return http.StatusForbidden
		case MissingConfiguration:
			return http.StatusInternalServerError
		default:
			return http.StatusBadRequest
		}
	}

	switch {
	case Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case Is(err, ErrForbidden):
		return http.StatusForbidden
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

// CodeOf returns the machine readable code carried by err
func CodeOf(err error) Code {
	var re *RemoteError
	if As(err, &re) {
		return re.Code
	}

	var we *WarpError
	if As(err, &we) {
		return we.Code
	}

	switch {
	case Is(err, ErrBadRequest):
		return InvalidObjectKey
	case Is(err, ErrUnauthorized):
		return InvalidCredentials
	case Is(err, ErrForbidden):
		return ForbiddenOperation
	case Is(err, ErrNotFound):
		return ObjectNotFound
	}

	return InternalServerError
}

func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

func As(err error, target any) bool {
	return goerrors.As(err, target)
}
