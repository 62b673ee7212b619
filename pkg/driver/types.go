// pkg/driver/types.go
package driver

import (
	"time"
)

// PowerCode is the two character power state reported by the PWR property
type PowerCode string

const (
	PowerOn              PowerCode = "01"
	PowerWarmUp          PowerCode = "02"
	PowerCoolDown        PowerCode = "03"
	PowerStandby         PowerCode = "04"
	PowerAbnormalStandby PowerCode = "05"
)

var powerLabels = map[PowerCode]string{
	PowerOn:              "On",
	PowerWarmUp:          "Warm Up",
	PowerCoolDown:        "Cool Down",
	PowerStandby:         "Standby, Network On",
	PowerAbnormalStandby: "Abnormal Standby",
}

// ParsePowerCode validates a raw PWR value
func ParsePowerCode(raw string) (PowerCode, bool) {
	code := PowerCode(raw)
	_, ok := powerLabels[code]
	return code, ok
}

// Label returns the human readable power state
func (p PowerCode) Label() string {
	if label, ok := powerLabels[p]; ok {
		return label
	}
	return "Unknown"
}

// IsOn reports whether the lamp is lit and the projector accepts commands
func (p PowerCode) IsOn() bool {
	return p == PowerOn
}

// PropertyQuery controls how a property reply is located
type PropertyQuery struct {
	// Anchor overrides the default "CODE=" marker searched for in the reply
	Anchor string
	// KeepAnchor returns the anchor as part of the value
	KeepAnchor bool
}

// PropertyOption customizes a GetProperty call
type PropertyOption func(*PropertyQuery)

// WithAnchor searches the reply for anchor instead of "CODE="
func WithAnchor(anchor string) PropertyOption {
	return func(q *PropertyQuery) {
		q.Anchor = anchor
	}
}

// WithAnchorKept keeps the anchor at the start of the returned value
func WithAnchorKept() PropertyOption {
	return func(q *PropertyQuery) {
		q.KeepAnchor = true
	}
}

// ResolvePropertyQuery applies opts on top of the default anchor for code
func ResolvePropertyQuery(code string, opts ...PropertyOption) PropertyQuery {
	query := PropertyQuery{Anchor: code + "="}
	for _, opt := range opts {
		opt(&query)
	}
	if query.Anchor == "" {
		query.Anchor = code + "="
	}
	return query
}

// SessionStats provides control connection statistics
type SessionStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	Reconnects     int64         `json:"reconnects"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

// ClientStatus is a point-in-time view of a projector client
type ClientStatus struct {
	SessionState string       `json:"session_state"`
	Busy         bool         `json:"busy"`
	BusyLabel    string       `json:"busy_label,omitempty"`
	SerialNumber string       `json:"serial_number,omitempty"`
	Stats        SessionStats `json:"stats"`
}

// ProjectorInfo identifies a configured projector
type ProjectorInfo struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Brand          string        `json:"brand"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	SerialPort     int           `json:"serial_port"`
	Scale          float64       `json:"timeout_scale"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}
