package transport

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds how much of a failed response body is kept for logs.
const maxErrorBody = 200

// TransportError reports a non-success HTTP status or an unreadable response.
type TransportError struct {
	Mode   Mode
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	prefix := "request failed"
	if e.Mode == ModeRelay {
		prefix = "relay request failed"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s with status %d: %v: %s", prefix, e.Status, e.Err, e.Body)
	}
	return fmt.Sprintf("%s with status %d: %s", prefix, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RelayError reports a relay envelope without a parsable inner body.
type RelayError struct {
	Message string
	Err     error
}

func (e *RelayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay response did not include a parsable body: %s: %v", e.Message, e.Err)
	}
	return "relay response did not include a parsable body: " + e.Message
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsRelayError reports whether err is, or wraps, a RelayError.
func IsRelayError(err error) bool {
	var target *RelayError
	return errors.As(err, &target)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
