package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/hugr-lab/manageql/agent"
	"github.com/hugr-lab/manageql/mgmt"
)

// ErrUnauthorized is returned when the agent rejects the token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx response of the agent.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps agent error codes to the mgmt sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case agent.CodeNotFound:
		return mgmt.ErrInstanceNotFound
	case agent.CodeMalformedName:
		return mgmt.ErrMalformedName
	case agent.CodeUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

func responseError(status int, body []byte) error {
	var er agent.ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Code == "" {
		er = agent.ErrorResponse{Code: agent.CodeInternal, Message: http.StatusText(status)}
	}
	return &StatusError{StatusCode: status, Code: er.Code, Message: er.Message}
}

// isRetryable reports whether a failed call may succeed when repeated.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return false
}
