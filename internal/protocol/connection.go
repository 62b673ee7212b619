// internal/protocol/connection.go
package protocol

import (
	"net"
	"strconv"
	"time"
)

// Well-known ESC/VP.net ports
const (
	DefaultControlPort = 3629
	DefaultSerialPort  = 3620
)

// TCPConfig represents control connection configuration
type TCPConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	KeepAlive      bool          `json:"keep_alive"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
}

// DefaultTCPConfig returns the configuration used when only a host is known
func DefaultTCPConfig(host string) *TCPConfig {
	return &TCPConfig{
		Host:           host,
		Port:           DefaultControlPort,
		KeepAlive:      true,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Address returns host:port
func (c *TCPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
