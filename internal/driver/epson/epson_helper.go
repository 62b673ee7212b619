// internal/driver/epson/epson_helper.go
package epson

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"projector-service/internal/protocol"
	"projector-service/pkg/driver"
)

// exclusive runs fn while holding the busy lock. The lock is taken before
// the session is (re)opened; opening is bounded by the session's connect
// timeout and fn gets a context bounded by timeout.
func (c *Client) exclusive(ctx context.Context, label string, timeout time.Duration, fn func(context.Context) error) error {
	release, err := c.lock.TryAcquire(label)
	if err != nil {
		return err
	}
	defer release()

	if c.session.State() != protocol.StateOpen {
		if err := c.session.Open(ctx); err != nil {
			c.logger.LogConnection("open", err)
			return err
		}
		c.logger.LogConnection("open", nil)
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(opCtx)
}

// transact writes one terminated line and reads one reply
func (c *Client) transact(ctx context.Context, line string) (string, error) {
	if err := c.session.Write(ctx, []byte(line+lineTerminator)); err != nil {
		return "", err
	}
	return c.readReply(ctx)
}

// readReply reads once and strips continuation markers
func (c *Client) readReply(ctx context.Context) (string, error) {
	raw, err := c.session.Read(ctx, replyBufferSize)
	if err != nil {
		return "", err
	}

	reply := strings.ReplaceAll(string(raw), continuationMarker, "")
	if strings.TrimRight(reply, "\r\n") == errorToken {
		return "", ErrDeviceError
	}
	return reply, nil
}

// queryProperty sends "CODE?" and returns the rest of the reply from the
// anchor on, multi-line replies included.
// The device sometimes emits an unrelated line first, so one extra read is
// allowed before giving up.
func (c *Client) queryProperty(ctx context.Context, code string, query driver.PropertyQuery) (string, error) {
	reply, err := c.transact(ctx, code+querySuffix)
	if err != nil {
		return "", err
	}

	index := strings.Index(reply, query.Anchor)
	if index < 0 {
		c.logger.Debug("Reply did not match, reading once more",
			zap.String("code", code),
			zap.String("reply", reply),
		)

		reply, err = c.readReply(ctx)
		if err != nil {
			return "", err
		}
		index = strings.Index(reply, query.Anchor)
		if index < 0 {
			return "", ErrNoMatchingResponse
		}
	}

	value := reply[index:]
	if !query.KeepAnchor {
		value = value[len(query.Anchor):]
	}
	return strings.TrimRight(value, "\r\n"), nil
}

func (c *Client) timeout(id string) time.Duration {
	return c.catalog.Timeouts.Scaled(id, c.config.TimeoutScale)
}

// fail wraps err with operation context and logs it
func (c *Client) fail(op, id string, native *int, timeout time.Duration, err error) error {
	opErr := &OperationError{
		Op:      op,
		ID:      id,
		Native:  native,
		Timeout: timeout,
		Err:     err,
	}

	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("id", id),
		zap.Duration("timeout", timeout),
		zap.Error(err),
	}
	if native != nil {
		fields = append(fields, zap.Int("native", *native))
	}

	if errors.Is(err, ErrBusy) {
		c.logger.Debug("Projector busy", fields...)
	} else {
		c.logger.Warn("Projector operation failed", fields...)
	}

	return opErr
}
