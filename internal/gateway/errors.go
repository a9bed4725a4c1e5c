package gateway

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Client wraps exactly one of these,
// so callers branch with errors.Is.
var (
	ErrNetwork = errors.New("network error")
	ErrTimeout = errors.New("request timeout")
	ErrServer  = errors.New("server error")
	ErrDecode  = errors.New("decode error")
)

// Error is the single error type produced by the gateway client.
type Error struct {
	Kind       error  // one of ErrNetwork, ErrTimeout, ErrServer, ErrDecode
	Op         string // "predict", "chat", "health"
	StatusCode int    // ErrServer only
	Body       string // ErrServer only
	Err        error  // underlying cause, if any
}

// Message is the user-facing description of the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case ErrNetwork:
		return "Network error: Unable to connect to the server. Please check if the backend is running."
	case ErrTimeout:
		return "Request timeout: The server took too long to respond."
	case ErrServer:
		return fmt.Sprintf("HTTP error! status: %d, message: %s", e.StatusCode, e.Body)
	case ErrDecode:
		return "Unexpected response from the server."
	}
	return "Failed to get response. Please try again."
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != ErrServer {
		return fmt.Sprintf("%s: %s (%v)", e.Op, e.Message(), e.Err)
	}
	return e.Op + ": " + e.Message()
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind sentinel of a gateway error, or nil.
func KindOf(err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return nil
}

// UserMessage renders any error for display in a transcript or UI.
func UserMessage(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Message()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
