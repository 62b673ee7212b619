// internal/driver/epson/epson_driver.go
package epson

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"projector-service/internal/catalog"
	"projector-service/internal/protocol"
	"projector-service/internal/utils"
	"projector-service/pkg/driver"
)

// Brand is the registry key for this driver
const Brand = "EPSON"

// Dialer opens side connections
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// ClientConfig represents the projector connection settings
type ClientConfig struct {
	ID             string        `json:"id"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	SerialPort     int           `json:"serial_port"`
	TimeoutScale   float64       `json:"timeout_scale"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// Client implements driver.Projector over ESC/VP.net. All operations share
// one Session and are serialized by a BusyLock.
type Client struct {
	config     ClientConfig
	catalog    *catalog.Catalog
	session    protocol.Session
	lock       *BusyLock
	observer   driver.BusyObserver
	dialSerial Dialer
	logger     *utils.ProjectorLogger
	serial     atomic.String
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithSession replaces the default TCP session
func WithSession(session protocol.Session) ClientOption {
	return func(c *Client) {
		c.session = session
	}
}

// WithSerialDialer replaces the dialer used for the serial side-channel
func WithSerialDialer(dialer Dialer) ClientOption {
	return func(c *Client) {
		c.dialSerial = dialer
	}
}

// WithBusyObserver registers a callback for lock transitions
func WithBusyObserver(observer driver.BusyObserver) ClientOption {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient creates a client. No connection is made until the first operation.
func NewClient(config ClientConfig, cat *catalog.Catalog, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if config.Host == "" {
		return nil, fmt.Errorf("projector host is required")
	}

	if config.Port == 0 {
		config.Port = protocol.DefaultControlPort
	}
	if config.SerialPort == 0 {
		config.SerialPort = protocol.DefaultSerialPort
	}
	if config.TimeoutScale <= 0 {
		config.TimeoutScale = 1
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	projectorLogger := utils.NewProjectorLogger(logger, config.ID, config.Host, Brand)

	client := &Client{
		config:  config,
		catalog: cat,
		logger:  projectorLogger,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.session == nil {
		tcpConfig := protocol.DefaultTCPConfig(config.Host)
		tcpConfig.Port = config.Port
		tcpConfig.ConnectTimeout = config.ConnectTimeout
		client.session = protocol.NewTCPSession(tcpConfig, projectorLogger.Logger)
	}
	if client.dialSerial == nil {
		dialer := &net.Dialer{}
		client.dialSerial = dialer.DialContext
	}
	client.lock = NewBusyLock(client.observer)

	return client, nil
}

// NewProjector is the registry factory for EPSON projectors
func NewProjector(info driver.ProjectorInfo, cat *catalog.Catalog, logger *zap.Logger, observer driver.BusyObserver) (driver.Projector, error) {
	config := ClientConfig{
		ID:             info.ID,
		Host:           info.Host,
		Port:           info.Port,
		SerialPort:     info.SerialPort,
		TimeoutScale:   info.Scale,
		ConnectTimeout: info.ConnectTimeout,
	}
	return NewClient(config, cat, logger, WithBusyObserver(observer))
}

// GetPower reads the PWR property
func (c *Client) GetPower(ctx context.Context) (driver.PowerCode, error) {
	timeout := c.timeout(powerCode)
	query := driver.ResolvePropertyQuery(powerCode)

	var raw string
	err := c.exclusive(ctx, "get_power", timeout, func(ctx context.Context) error {
		var err error
		raw, err = c.queryProperty(ctx, powerCode, query)
		return err
	})
	if err != nil {
		return "", c.fail("get_power", powerCode, nil, timeout, err)
	}

	code, ok := driver.ParsePowerCode(strings.TrimSpace(raw))
	if !ok {
		return "", c.fail("get_power", powerCode, nil, timeout,
			fmt.Errorf("%w: unknown power code %q", ErrProtocol, raw))
	}
	return code, nil
}

// SendCommand sends a catalog command and returns the reply unparsed
func (c *Client) SendCommand(ctx context.Context, commandID string) (string, error) {
	command, ok := c.catalog.Command(commandID)
	if !ok {
		return "", c.fail("send_command", commandID, nil, 0, ErrUnknownCommand)
	}
	timeout := c.timeout(commandID)

	start := time.Now()
	var reply string
	err := c.exclusive(ctx, commandID, timeout, func(ctx context.Context) error {
		var err error
		reply, err = c.transact(ctx, command.Line())
		return err
	})
	if err != nil {
		return "", c.fail("send_command", commandID, nil, timeout, err)
	}

	c.logger.LogOperation("send_command", commandID, time.Since(start), nil)
	return reply, nil
}

// ReadConfigValue reads a config range or readout and returns the human value
func (c *Client) ReadConfigValue(ctx context.Context, propertyID string) (int, error) {
	property, ok := c.catalog.Property(propertyID)
	if !ok {
		return 0, c.fail("read_config_value", propertyID, nil, 0, ErrUnknownProperty)
	}
	timeout := c.timeout(property.Code)
	query := driver.ResolvePropertyQuery(property.Code)

	var raw string
	err := c.exclusive(ctx, propertyID, timeout, func(ctx context.Context) error {
		var err error
		raw, err = c.queryProperty(ctx, property.Code, query)
		return err
	})
	if err != nil {
		return 0, c.fail("read_config_value", propertyID, nil, timeout, err)
	}

	native, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, c.fail("read_config_value", propertyID, nil, timeout,
			fmt.Errorf("%w: %s value %q is not a number", ErrProtocol, property.Code, raw))
	}
	return property.FromNative(native), nil
}

// WriteConfigValue translates human and sets the property. Range checks run
// before any I/O.
func (c *Client) WriteConfigValue(ctx context.Context, propertyID string, human int) error {
	property, ok := c.catalog.Property(propertyID)
	if !ok {
		return c.fail("write_config_value", propertyID, nil, 0, ErrUnknownProperty)
	}
	if !property.Writable {
		return c.fail("write_config_value", propertyID, nil, 0, ErrReadOnly)
	}

	native, inRange := property.ToNative(human)
	if !property.Human.Contains(human) || !inRange {
		return c.fail("write_config_value", propertyID, &native, 0,
			fmt.Errorf("%w: %d not in %d..%d", ErrOutOfRange, human, property.Human.Min, property.Human.Max))
	}

	timeout := c.timeout(propertyID)
	line := property.Code + " " + strconv.Itoa(native)

	start := time.Now()
	err := c.exclusive(ctx, propertyID, timeout, func(ctx context.Context) error {
		_, err := c.transact(ctx, line)
		return err
	})
	if err != nil {
		return c.fail("write_config_value", propertyID, &native, timeout, err)
	}

	c.logger.LogOperation("write_config_value", propertyID, time.Since(start), nil)
	return nil
}

// GetProperty queries code and returns the raw value after the anchor
func (c *Client) GetProperty(ctx context.Context, code string, opts ...driver.PropertyOption) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", c.fail("get_property", code, nil, 0, ErrUnknownProperty)
	}
	timeout := c.timeout(code)
	query := driver.ResolvePropertyQuery(code, opts...)

	var value string
	err := c.exclusive(ctx, code, timeout, func(ctx context.Context) error {
		var err error
		value, err = c.queryProperty(ctx, code, query)
		return err
	})
	if err != nil {
		return "", c.fail("get_property", code, nil, timeout, err)
	}
	return value, nil
}

// SendRaw sends a free-form line. The line itself selects the timeout, so
// "PWR ON" sent raw waits as long as the catalog command.
func (c *Client) SendRaw(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", c.fail("send_raw", line, nil, 0, fmt.Errorf("%w: empty line", ErrUnknownCommand))
	}
	timeout := c.timeout(line)

	var reply string
	err := c.exclusive(ctx, line, timeout, func(ctx context.Context) error {
		var err error
		reply, err = c.transact(ctx, line)
		return err
	})
	if err != nil {
		return "", c.fail("send_raw", line, nil, timeout, err)
	}
	return reply, nil
}

// Status returns a snapshot of the client
func (c *Client) Status() driver.ClientStatus {
	stats := c.session.Stats()
	return driver.ClientStatus{
		SessionState: string(c.session.State()),
		Busy:         c.lock.Held(),
		BusyLabel:    c.lock.Label(),
		SerialNumber: c.serial.Load(),
		Stats: driver.SessionStats{
			BytesWritten:   stats.BytesWritten,
			BytesRead:      stats.BytesRead,
			OperationCount: stats.OperationCount,
			ErrorCount:     stats.ErrorCount,
			Reconnects:     stats.Reconnects,
			LastActivity:   stats.LastActivity,
			AverageLatency: stats.AverageLatency,
			IsConnected:    stats.IsConnected,
		},
	}
}

// Close tears down the control session
func (c *Client) Close() error {
	err := c.session.Close()
	c.logger.LogConnection("close", err)
	return err
}

// Config returns the effective configuration
func (c *Client) Config() ClientConfig {
	return c.config
}
