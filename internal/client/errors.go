package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/IlyaErmolovich/gc-frontend/internal/types"
)

// Kind classifies a failed request
type Kind int

const (
	KindNetwork      Kind = iota + 1 // no response reached the caller
	KindHTTP                         // the backend answered with a 4xx/5xx status
	KindUnauthorized                 // the backend answered 401
	KindInternal                     // the request could not be built or the response could not be decoded
)

var kindNames = []string{"", "network", "http", "unauthorized", "internal"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) || kindNames[k] == "" {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error represents an error encountered when communicating with the backend API.
// StatusCode 0 = network/connection error, >0 = HTTP response received
type Error struct {
	Kind          Kind
	StatusCode    int
	Method        string
	Path          string
	ErrorCode     string
	ServerMessage string // the message field of the error body, if any
	UserMessage   string
	Err           error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("network error: %s %s: %v", e.Method, e.Path, e.Err)
	case KindInternal:
		return fmt.Sprintf("internal error: %v", e.Err)
	}

	msg := fmt.Sprintf("api status %d: %s %s", e.StatusCode, e.Method, e.Path)
	if e.ServerMessage != "" {
		msg += " - " + e.ServerMessage
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserError returns the user-friendly message
func (e *Error) UserError() string {
	return e.UserMessage
}

func newNetworkError(method, path string, err error) *Error {
	return &Error{
		Kind:        KindNetwork,
		Method:      method,
		Path:        path,
		UserMessage: "Unable to connect. Please check your internet connection and try again.",
		Err:         err,
	}
}

// newInternalError wraps err with an explanation of what was being done when it occurred
func newInternalError(err error, while string) *Error {
	return &Error{
		Kind:        KindInternal,
		UserMessage: "An error occurred. Please try again later.",
		Err:         fmt.Errorf("%w while %s", err, while),
	}
}

// newAPIError builds an Error from an error status and the (possibly empty) response body
func newAPIError(method, path string, statusCode int, body []byte) *Error {
	var serverErr types.ErrorResponse
	if len(body) > 0 {
		_ = json.Unmarshal(body, &serverErr)
	}

	var userMsg string
	switch statusCode {
	case http.StatusUnauthorized:
		userMsg = "Your session has expired. Please log in again."
	case http.StatusForbidden:
		userMsg = "You don't have permission to access this resource."
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		userMsg = "Invalid request. Please check your input and try again."
	case http.StatusTooManyRequests:
		userMsg = "Too many requests. Please try again in a few moments."
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		userMsg = "The service is temporarily unavailable. Please try again later."
	default:
		userMsg = "An error occurred. Please try again."
	}
	if serverErr.Message != "" {
		userMsg = serverErr.Message
	}

	kind := KindHTTP
	if statusCode == http.StatusUnauthorized {
		kind = KindUnauthorized
	}

	return &Error{
		Kind:          kind,
		StatusCode:    statusCode,
		Method:        method,
		Path:          path,
		ErrorCode:     serverErr.ErrorCode,
		ServerMessage: serverErr.Message,
		UserMessage:   userMsg,
	}
}

// AsError extracts the client Error from err
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	ce, ok := AsError(err)
	return ok && ce.Kind == KindUnauthorized
}

// IsNetwork reports whether err means the backend could not be reached
func IsNetwork(err error) bool {
	ce, ok := AsError(err)
	return ok && ce.Kind == KindNetwork
}

// MessageOr returns the message sent by the server, or fallback when the server sent none
// (including when no response arrived at all).
func MessageOr(err error, fallback string) string {
	if ce, ok := AsError(err); ok && ce.ServerMessage != "" {
		return ce.ServerMessage
	}
	return fallback
}
