// internal/protocol/tcp_connection.go
package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ESC/VP.net session negotiation
const (
	HelloRequest   = "ESC/VP.net\x10\x03\x00\x00\x00\x00"
	ProtocolName   = "ESC/VP.net"
	helloReplySize = 16
	helloStatusPos = 14
	helloStatusOK  = 0x20
)

// TCPSession implements Session over an ESC/VP.net TCP connection
type TCPSession struct {
	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.Mutex
	state  *stateMachine
	stats  sessionCounters
}

type sessionCounters struct {
	bytesWritten   atomic.Int64
	bytesRead      atomic.Int64
	operationCount atomic.Int64
	errorCount     atomic.Int64
	reconnects     atomic.Int64
	lastActivity   atomic.Time
	averageLatency atomic.Duration
}

// NewTCPSession creates a disconnected session; the first Open dials
func NewTCPSession(config *TCPConfig, logger *zap.Logger) *TCPSession {
	sessionLogger := logger.With(
		zap.String("protocol", "tcp"),
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
	)

	return &TCPSession{
		config: config,
		logger: sessionLogger,
		state:  newStateMachine(sessionLogger),
	}
}

// Open dials the projector and performs the ESC/VP.net hello. On any
// failure the session stays Disconnected and the error is returned.
func (ts *TCPSession) Open(ctx context.Context) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	if ts.state.Current() == StateOpen && ts.conn != nil {
		return nil
	}

	address := ts.config.Address()
	if err := ts.state.fire(eventDial); err != nil {
		return &TransportError{Op: "dial", Addr: address, Err: err}
	}

	ts.logger.Info("Opening projector session")

	dialCtx := ctx
	if ts.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, ts.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	if ts.config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	}

	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		ts.state.settle(eventFail)
		ts.stats.errorCount.Inc()
		ts.logger.Error("Failed to open projector session", zap.Error(err))
		return &TransportError{Op: "dial", Addr: address, Err: err}
	}

	if err := ts.handshake(dialCtx, conn); err != nil {
		_ = conn.Close()
		ts.state.settle(eventFail)
		ts.stats.errorCount.Inc()
		ts.logger.Error("Projector handshake failed", zap.Error(err))
		return &TransportError{Op: "handshake", Addr: address, Err: err}
	}

	ts.conn = conn
	ts.state.settle(eventAccept)
	ts.stats.reconnects.Inc()
	ts.stats.lastActivity.Store(time.Now())

	ts.logger.Info("Projector session opened")
	return nil
}

// handshake sends the hello and validates the 16 byte reply
func (ts *TCPSession) handshake(ctx context.Context, conn net.Conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	if _, err := conn.Write([]byte(HelloRequest)); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}

	reply := make([]byte, helloReplySize)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("failed to read hello reply: %w", err)
	}

	return ValidateHello(reply)
}

// ValidateHello checks the protocol name prefix and status byte of a hello reply
func ValidateHello(reply []byte) error {
	if len(reply) < helloReplySize {
		return fmt.Errorf("%w: short reply of %d bytes", ErrHandshake, len(reply))
	}
	if !bytes.Equal(reply[:len(ProtocolName)], []byte(ProtocolName)) {
		return fmt.Errorf("%w: unexpected protocol name %q", ErrHandshake, reply[:len(ProtocolName)])
	}
	if reply[helloStatusPos] != helloStatusOK {
		return fmt.Errorf("%w: status byte 0x%02x", ErrHandshake, reply[helloStatusPos])
	}
	return nil
}

// Close closes the socket. It is idempotent and always leaves the
// session Disconnected.
func (ts *TCPSession) Close() error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	ts.state.settle(eventClose)
	if ts.conn == nil {
		return nil
	}

	err := ts.conn.Close()
	ts.conn = nil
	if err != nil {
		ts.logger.Warn("Failed to close projector session cleanly", zap.Error(err))
		return &TransportError{Op: "close", Addr: ts.config.Address(), Err: err}
	}

	ts.logger.Info("Projector session closed")
	return nil
}

// State returns the current session state
func (ts *TCPSession) State() SessionState {
	return ts.state.Current()
}

// Write sends data. A failure drops the session.
func (ts *TCPSession) Write(ctx context.Context, data []byte) error {
	conn, err := ts.activeConn("write")
	if err != nil {
		return err
	}

	stop := ts.bindDeadline(ctx, conn, ts.config.WriteTimeout, conn.SetWriteDeadline)
	defer stop()

	startTime := time.Now()
	n, err := conn.Write(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	if err != nil {
		ts.drop(conn, err)
		return &TransportError{Op: "write", Addr: ts.config.Address(), Err: err}
	}

	ts.stats.bytesWritten.Add(int64(n))
	ts.recordOperation(time.Since(startTime))

	ts.logger.Debug("Session write completed", zap.ByteString("data", data))
	return nil
}

// Read performs one read of up to maxBytes. A failure, including a
// deadline expiry, drops the session.
func (ts *TCPSession) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	conn, err := ts.activeConn("read")
	if err != nil {
		return nil, err
	}

	stop := ts.bindDeadline(ctx, conn, ts.config.ReadTimeout, conn.SetReadDeadline)
	defer stop()

	startTime := time.Now()
	buffer := make([]byte, maxBytes)
	n, err := conn.Read(buffer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		ts.drop(conn, err)
		return nil, &TransportError{Op: "read", Addr: ts.config.Address(), Err: err}
	}

	ts.stats.bytesRead.Add(int64(n))
	ts.recordOperation(time.Since(startTime))

	ts.logger.Debug("Session read completed", zap.ByteString("data", buffer[:n]))
	return buffer[:n], nil
}

// Stats returns a snapshot of the session counters
func (ts *TCPSession) Stats() ProtocolStats {
	return ProtocolStats{
		BytesWritten:   ts.stats.bytesWritten.Load(),
		BytesRead:      ts.stats.bytesRead.Load(),
		OperationCount: ts.stats.operationCount.Load(),
		ErrorCount:     ts.stats.errorCount.Load(),
		Reconnects:     ts.stats.reconnects.Load(),
		LastActivity:   ts.stats.lastActivity.Load(),
		AverageLatency: ts.stats.averageLatency.Load(),
		IsConnected:    ts.State() == StateOpen,
	}
}

func (ts *TCPSession) activeConn(op string) (net.Conn, error) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	if ts.state.Current() != StateOpen || ts.conn == nil {
		return nil, &TransportError{Op: op, Addr: ts.config.Address(), Err: ErrNotOpen}
	}
	return ts.conn, nil
}

// bindDeadline applies the ctx deadline (or fallback) to conn and aborts
// blocked I/O when ctx is cancelled. The returned func releases the binding.
func (ts *TCPSession) bindDeadline(ctx context.Context, conn net.Conn, fallback time.Duration, set func(time.Time) error) func() {
	if deadline, ok := ctx.Deadline(); ok {
		_ = set(deadline)
	} else if fallback > 0 {
		_ = set(time.Now().Add(fallback))
	} else {
		_ = set(time.Time{})
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	return func() { stop() }
}

// drop tears down conn after an I/O failure unless a newer connection
// has already replaced it.
func (ts *TCPSession) drop(conn net.Conn, cause error) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	ts.stats.errorCount.Inc()
	if ts.conn != conn {
		return
	}

	_ = conn.Close()
	ts.conn = nil
	ts.state.settle(eventDrop)

	ts.logger.Warn("Projector session dropped", zap.Error(cause))
}

func (ts *TCPSession) recordOperation(latency time.Duration) {
	ts.stats.operationCount.Inc()
	ts.stats.lastActivity.Store(time.Now())

	if avg := ts.stats.averageLatency.Load(); avg == 0 {
		ts.stats.averageLatency.Store(latency)
	} else {
		ts.stats.averageLatency.Store((avg + latency) / 2)
	}
}
