// internal/protocol/errors.go
package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by Write and Read outside the Open state
	ErrNotOpen = errors.New("session not open")
	// ErrHandshake means the device answered the hello with an unexpected reply
	ErrHandshake = errors.New("handshake rejected")
)

// TransportError reports a socket level failure. The session is
// Disconnected after any TransportError; the next Open reconnects.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err carries a TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
