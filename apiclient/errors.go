package apiclient

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	apperrors "github.com/agrimandi/agrimandi-go/internal/errors"
)

// ErrUnreachable wraps network failures where no response was received at
// all, as opposed to an HTTP error status. Only the latter carries a
// status code; neither is retried.
var ErrUnreachable = apperrors.ErrUnreachable

// Error is an HTTP error-status response from the backend: the status
// code plus the server-provided message when one could be parsed from the
// body.
type Error struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// IsStatus reports whether err is a backend Error with the given status.
func IsStatus(err error, statusCode int) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == statusCode
	}
	return false
}

// newStatusError builds an Error from a response body, preferring the
// message fields the backend surfaces use (detail, message, error).
func newStatusError(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode, Body: body}

	var envelope struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Err     string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Detail != "":
			apiErr.Message = envelope.Detail
		case envelope.Message != "":
			apiErr.Message = envelope.Message
		case envelope.Err != "":
			apiErr.Message = envelope.Err
		}
	}
	return apiErr
}
