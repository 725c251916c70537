package remotethermo

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAPI matches every error returned by Client.Fetch.
	ErrAPI       = errors.New("remotethermo api error")
	ErrAuth      = errors.New("remotethermo authentication error")
	ErrRateLimit = errors.New("remotethermo rate limited")
	ErrServer    = errors.New("remotethermo server error")
)

type Error struct {
	// StatusCode is zero for transport and decoding failures.
	StatusCode int
	Reason     string
	Message    string

	kind error
	err  error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, e.Reason)
	}

	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}

	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrAPI || (e.kind != nil && target == e.kind)
}

func (e *Error) Unwrap() error {
	return e.err
}

func statusError(statusCode int) *Error {
	e := &Error{
		StatusCode: statusCode,
		Reason:     http.StatusText(statusCode),
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.kind = ErrAuth
	case statusCode == http.StatusTooManyRequests:
		e.kind = ErrRateLimit
	case statusCode >= 500 && statusCode <= 599:
		e.kind = ErrServer
	}

	return e
}

func transportError(message string, err error) *Error {
	return &Error{Message: message, err: err}
}
