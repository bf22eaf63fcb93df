package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// APIError is a non-2xx response from the backend. It is an expected outcome
// and callers surface it as an inline message.
type APIError struct {
	Status  int
	Code    string
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// TransportError is a network-level failure; no response was received.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a network-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsStatus reports whether err is an API error with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// IsUnauthorized reports whether err is a 401 or 403 API error.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}

// AsAPIError returns the API error wrapped in err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Method: method, Path: path}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return apiErr
	}
	var eb errorBody
	if err := sonic.ConfigStd.Unmarshal(body, &eb); err != nil {
		// echo's c.String responses are plain text.
		apiErr.Message = trimmed
		return apiErr
	}
	apiErr.Code = eb.Code
	apiErr.Message = eb.Message
	if eb.Error != "" {
		apiErr.Message = eb.Error
	}
	return apiErr
}
