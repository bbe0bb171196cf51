package authclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/authapi"
)

// Error describes a failed call to the identity service. Err wraps one of the
// authapi sentinels, or the transport error when no response was received.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "auth client error"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Err, e.Status, e.Message)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Err, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

func invalidResponse(op string, status int, err error) error {
	return &Error{Op: op, Status: status, Message: err.Error(), Err: authapi.ErrInvalidResponse}
}

// statusError classifies a non-2xx response. A 401 from login means the
// credentials were rejected, anywhere else it means the token was.
func statusError(op string, resp *http.Response) error {
	sentinel := authapi.ErrUnexpectedStatus
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = authapi.ErrBadRequest
	case http.StatusUnauthorized:
		sentinel = authapi.ErrUnauthorized
		if op == opLogin {
			sentinel = authapi.ErrInvalidCredentials
		}
	case http.StatusForbidden:
		sentinel = authapi.ErrInvalidCredentials
	case http.StatusConflict:
		sentinel = authapi.ErrConflict
	}
	return &Error{Op: op, Status: resp.StatusCode, Message: errorMessage(resp.Body), Err: sentinel}
}

func errorMessage(body io.Reader) string {
	var payload authapi.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error)
}
