// internal/driver/epson/serial.go
package epson

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"projector-service/internal/protocol"
	"projector-service/pkg/driver"
)

// GetSerialNumber returns the hardware serial, fetched once over the
// side-channel port while the projector is on. An empty serial is not cached.
func (c *Client) GetSerialNumber(ctx context.Context) (string, error) {
	if serial := c.serial.Load(); serial != "" {
		return serial, nil
	}

	ctx, cancel := context.WithTimeout(ctx, serialTimeout)
	defer cancel()

	var serial string
	err := c.exclusive(ctx, "serial_number", serialTimeout, func(ctx context.Context) error {
		powerCtx, powerCancel := context.WithTimeout(ctx, c.timeout(powerCode))
		defer powerCancel()

		raw, err := c.queryProperty(powerCtx, powerCode, driver.ResolvePropertyQuery(powerCode))
		if err != nil {
			return err
		}
		if power := driver.PowerCode(strings.TrimSpace(raw)); !power.IsOn() {
			return fmt.Errorf("%w: power is %s", ErrNotReady, power.Label())
		}

		serial, err = c.fetchSerial(ctx)
		return err
	})
	if err != nil {
		return "", c.fail("get_serial_number", "", nil, serialTimeout, err)
	}

	if serial == "" {
		c.logger.Warn("Projector returned an empty serial number")
		return "", nil
	}

	c.serial.Store(serial)
	c.logger.Info("Projector serial number fetched", zap.String("serial_number", serial))
	return serial, nil
}

// fetchSerial opens a short-lived connection to the serial port, sends the
// probe and extracts the serial from the fixed offset of the reply.
func (c *Client) fetchSerial(ctx context.Context) (string, error) {
	address := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.SerialPort))

	conn, err := c.dialSerial(ctx, "tcp", address)
	if err != nil {
		return "", &protocol.TransportError{Op: "serial dial", Addr: address, Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(serialProbe); err != nil {
		return "", &protocol.TransportError{Op: "serial write", Addr: address, Err: err}
	}

	reply := make([]byte, serialReplySize)
	n, err := conn.Read(reply)
	if err != nil {
		return "", &protocol.TransportError{Op: "serial read", Addr: address, Err: err}
	}

	if n <= serialOffset {
		return "", nil
	}
	return strings.Trim(string(reply[serialOffset:n]), "\x00 \r\n"), nil
}
