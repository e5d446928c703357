package bridge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransport marks network-level failures (connection refused,
// timeout, reset). Dispatches hitting it are retried a bounded number
// of times.
var ErrTransport = errors.New("transport error")

// ErrRejected marks a structured per-field error returned by the bridge
// inside a 2xx response. Not retried.
var ErrRejected = errors.New("rejected by bridge")

// APIError is the error object the bridge embeds in a response array.
type APIError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge error %d at %s: %s", e.Type, e.Address, e.Description)
}

// friendlyMessage remaps common low-level failures to readable log text.
func friendlyMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	case strings.Contains(msg, "Client.Timeout") || strings.Contains(msg, "context deadline exceeded"):
		return "request timed out"
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "EOF"):
		return "socket hang up"
	case strings.Contains(msg, "500"):
		return "bridge is busy"
	default:
		return msg
	}
}

// transportError wraps a network failure with its friendly message.
func transportError(err error) error {
	return fmt.Errorf("%w: %s", ErrTransport, friendlyMessage(err))
}
