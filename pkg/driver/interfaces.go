// pkg/driver/interfaces.go
package driver

import (
	"context"
)

// Projector is the interface every projector client implements.
// At most one operation runs at a time; a concurrent call fails fast
// with a busy error instead of waiting.
type Projector interface {
	// Typed operations
	GetPower(ctx context.Context) (PowerCode, error)
	SendCommand(ctx context.Context, commandID string) (string, error)
	ReadConfigValue(ctx context.Context, propertyID string) (int, error)
	WriteConfigValue(ctx context.Context, propertyID string, human int) error
	GetProperty(ctx context.Context, code string, opts ...PropertyOption) (string, error)
	GetSerialNumber(ctx context.Context) (string, error)

	// Free-form line, used for remote keys and pass-through commands
	SendRaw(ctx context.Context, line string) (string, error)

	// Diagnostics
	Status() ClientStatus

	// Cleanup
	Close() error
}

// BusyObserver is notified when a client starts or finishes an operation
type BusyObserver func(busy bool, label string)
