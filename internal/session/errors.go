package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorCode is the machine-readable code the ACER HUB API places in the body of a
// failed response, e.g. {"error": {"code": "CSRF_INVALID", "message": "..."}}
type ErrorCode string

const (
	CodeAuthExpired      ErrorCode = "AUTH_EXPIRED"
	CodeTokenInvalid     ErrorCode = "TOKEN_INVALID"
	CodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeCSRFInvalid      ErrorCode = "CSRF_INVALID"
)

// ErrAuthExpired is returned when the API no longer accepts our access token; the
// session has been terminated by the time a caller sees it
var ErrAuthExpired = errors.New("session expired")

// ErrCSRFInvalid is returned when the API rejected our CSRF token and we were unable
// to recover by refreshing it
var ErrCSRFInvalid = errors.New("csrf token rejected")

// ErrPermissionDenied is returned when the API refuses an operation that the
// authenticated user is not allowed to perform; the session itself remains valid
var ErrPermissionDenied = errors.New("permission denied")

// ErrNetworkFailure is returned when a request could not be completed at all, e.g.
// because the API was unreachable or the request timed out
var ErrNetworkFailure = errors.New("network failure")

// ErrNotAuthenticated is returned when an operation requires a session but no token
// pair is stored
var ErrNotAuthenticated = errors.New("not authenticated")

// APIError describes a 401 or 403 response from the API, carrying the error code and
// message from the response body. It unwraps to the sentinel error that corresponds to
// its status and code.
type APIError struct {
	StatusCode int
	Code       ErrorCode
	Message    string
}

// Error formats the error with the matching sentinel as a prefix
func (e *APIError) Error() string {
	s := fmt.Sprintf("%v (status %d", e.Unwrap(), e.StatusCode)
	if e.Code != "" {
		s += fmt.Sprintf(", code %s", e.Code)
	}
	s += ")"
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}

// Unwrap resolves the error to one of ErrAuthExpired, ErrCSRFInvalid or
// ErrPermissionDenied
func (e *APIError) Unwrap() error {
	if e.Code == CodePermissionDenied {
		return ErrPermissionDenied
	}
	if e.StatusCode == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	if e.Code == CodeCSRFInvalid {
		return ErrCSRFInvalid
	}
	return ErrPermissionDenied
}

// errorBody covers the shapes of error payload we've seen from the API: a nested
// object with code and message, a flat object, or a bare string under "error"
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
}

type nestedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// maxErrorBodySize bounds how much of a failed response we'll read while looking for
// an error code
const maxErrorBodySize = 64 * 1024

// decodeAPIError reads the body of a 401 or 403 response into an APIError. Only the
// first maxErrorBodySize bytes are inspected; the body is restored afterwards, unread
// remainder included, so that the response can still be handed to the caller intact.
func decodeAPIError(res *http.Response) *APIError {
	apiErr := &APIError{StatusCode: res.StatusCode}
	if res.Body == nil {
		return apiErr
	}

	orig := res.Body
	data, _ := io.ReadAll(io.LimitReader(orig, maxErrorBodySize))
	res.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), orig), orig}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Code = body.Code
	apiErr.Message = body.Message
	if len(body.Error) > 0 {
		var nested nestedError
		var text string
		if err := json.Unmarshal(body.Error, &nested); err == nil {
			if nested.Code != "" {
				apiErr.Code = nested.Code
			}
			if nested.Message != "" {
				apiErr.Message = nested.Message
			}
		} else if err := json.Unmarshal(body.Error, &text); err == nil && apiErr.Message == "" {
			apiErr.Message = text
		}
	}
	return apiErr
}

// CheckResponse returns an *APIError for a 401 or 403 response and nil for any other
// status, so that feature code can surface permission problems without inspecting
// response bodies itself
func CheckResponse(res *http.Response) error {
	if res.StatusCode != http.StatusUnauthorized && res.StatusCode != http.StatusForbidden {
		return nil
	}
	return decodeAPIError(res)
}
