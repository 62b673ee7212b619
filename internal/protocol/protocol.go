// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"
)

// Session owns a single stream connection to a projector control port.
// It is not safe for concurrent transactions; callers serialize access.
type Session interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	State() SessionState

	// Data communication, bounded by the ctx deadline
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Diagnostics
	Stats() ProtocolStats
}

// ProtocolStats provides session level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	Reconnects     int64         `json:"reconnects"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}
