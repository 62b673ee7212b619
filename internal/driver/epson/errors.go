// internal/driver/epson/errors.go
package epson

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrBusy means another operation holds the client
	ErrBusy = errors.New("projector busy")
	// ErrDeviceError means the projector answered with its error token
	ErrDeviceError = errors.New("projector replied ERR")
	// ErrProtocol means a reply could not be interpreted
	ErrProtocol = errors.New("protocol error")
	// ErrNoMatchingResponse means the reply anchor was missing after the retry read
	ErrNoMatchingResponse = fmt.Errorf("%w: no matching response", ErrProtocol)
	// ErrOutOfRange means a value falls outside the property's range
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnknownCommand means the command id is not in the catalog
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownProperty means the property id is not in the catalog
	ErrUnknownProperty = errors.New("unknown property")
	// ErrReadOnly means the property cannot be written
	ErrReadOnly = errors.New("property is read-only")
	// ErrNotReady means the projector must be powered on first
	ErrNotReady = errors.New("projector not ready")
)

// OperationError carries the context of a failed client operation
type OperationError struct {
	Op      string
	ID      string
	Native  *int
	Timeout time.Duration
	Err     error
}

func (e *OperationError) Error() string {
	msg := e.Op
	if e.ID != "" {
		msg += " " + strconv.Quote(e.ID)
	}
	if e.Native != nil {
		msg += " native=" + strconv.Itoa(*e.Native)
	}
	if e.Timeout > 0 {
		msg += " timeout=" + e.Timeout.String()
	}
	return msg + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
