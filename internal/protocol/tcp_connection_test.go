package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func goodHello() []byte {
	return append([]byte(ProtocolName), 0x10, 0x03, 0x00, 0x00, 0x20, 0x00)
}

// startFakeProjector accepts connections, answers the hello with reply and
// then hands the connection to handler.
func startFakeProjector(t *testing.T, reply []byte, handler func(net.Conn)) *TCPConfig {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				hello := make([]byte, len(HelloRequest))
				if _, err := io.ReadFull(conn, hello); err != nil {
					return
				}
				if string(hello) != HelloRequest {
					return
				}
				if _, err := conn.Write(reply); err != nil {
					return
				}
				if handler != nil {
					handler(conn)
				}
			}(conn)
		}
	}()

	host, portText, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	cfg := DefaultTCPConfig(host)
	cfg.Port = port
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

// echoLines answers every request with "<request>=OK\r:"
func echoLines(conn net.Conn) {
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		line := string(buf[:n])
		if _, err := conn.Write([]byte(line[:len(line)-1] + "=OK\r:")); err != nil {
			return
		}
	}
}

func TestTCPSessionOpenAndTransact(t *testing.T) {
	cfg := startFakeProjector(t, goodHello(), echoLines)
	session := NewTCPSession(cfg, zap.NewNop())
	defer session.Close()

	assert.Equal(t, StateDisconnected, session.State())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, session.Open(ctx))
	assert.Equal(t, StateOpen, session.State())

	require.NoError(t, session.Write(ctx, []byte("PWR?\r")))
	reply, err := session.Read(ctx, 256)
	require.NoError(t, err)
	assert.Equal(t, "PWR?=OK\r:", string(reply))

	stats := session.Stats()
	assert.True(t, stats.IsConnected)
	assert.EqualValues(t, 5, stats.BytesWritten)
	assert.EqualValues(t, len(reply), stats.BytesRead)
	assert.EqualValues(t, 1, stats.Reconnects)
}

func TestTCPSessionOpenIsIdempotent(t *testing.T) {
	cfg := startFakeProjector(t, goodHello(), echoLines)
	session := NewTCPSession(cfg, zap.NewNop())
	defer session.Close()

	ctx := context.Background()
	require.NoError(t, session.Open(ctx))
	require.NoError(t, session.Open(ctx))
	assert.EqualValues(t, 1, session.Stats().Reconnects)
}

func TestTCPSessionHandshakeRejected(t *testing.T) {
	tests := []struct {
		name  string
		reply []byte
	}{
		{"wrong protocol name", append([]byte("ESC/VP.nat"), 0x10, 0x03, 0x00, 0x00, 0x20, 0x00)},
		{"bad status byte", append([]byte(ProtocolName), 0x10, 0x03, 0x00, 0x00, 0x43, 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := startFakeProjector(t, tt.reply, nil)
			session := NewTCPSession(cfg, zap.NewNop())

			err := session.Open(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrHandshake)
			assert.True(t, IsTransportError(err))
			assert.Equal(t, StateDisconnected, session.State())
		})
	}
}

func TestTCPSessionConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().(*net.TCPAddr)
	listener.Close()

	cfg := DefaultTCPConfig("127.0.0.1")
	cfg.Port = addr.Port
	cfg.ConnectTimeout = time.Second
	session := NewTCPSession(cfg, zap.NewNop())

	err = session.Open(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "dial", te.Op)
	assert.Equal(t, StateDisconnected, session.State())
	assert.EqualValues(t, 1, session.Stats().ErrorCount)
}

func TestTCPSessionIORequiresOpen(t *testing.T) {
	session := NewTCPSession(DefaultTCPConfig("127.0.0.1"), zap.NewNop())

	err := session.Write(context.Background(), []byte("PWR?\r"))
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = session.Read(context.Background(), 16)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestTCPSessionReadTimeoutDropsAndReconnects(t *testing.T) {
	silent := func(conn net.Conn) {
		_, _ = io.Copy(io.Discard, conn)
	}
	cfg := startFakeProjector(t, goodHello(), silent)
	session := NewTCPSession(cfg, zap.NewNop())
	defer session.Close()

	require.NoError(t, session.Open(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := session.Read(ctx, 256)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Equal(t, StateDisconnected, session.State())

	require.NoError(t, session.Open(context.Background()))
	assert.Equal(t, StateOpen, session.State())
	assert.EqualValues(t, 2, session.Stats().Reconnects)
}

func TestTCPSessionPeerCloseDrops(t *testing.T) {
	hangup := func(conn net.Conn) {}
	cfg := startFakeProjector(t, goodHello(), hangup)
	session := NewTCPSession(cfg, zap.NewNop())

	require.NoError(t, session.Open(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := session.Read(ctx, 16)
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, session.State())
}

func TestTCPSessionCloseIsIdempotent(t *testing.T) {
	cfg := startFakeProjector(t, goodHello(), echoLines)
	session := NewTCPSession(cfg, zap.NewNop())

	require.NoError(t, session.Open(context.Background()))
	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
	assert.Equal(t, StateDisconnected, session.State())
}

func TestValidateHello(t *testing.T) {
	assert.NoError(t, ValidateHello(goodHello()))
	assert.ErrorIs(t, ValidateHello([]byte("ESC/VP")), ErrHandshake)
	assert.ErrorIs(t, ValidateHello(append([]byte("XXXXXXXXXX"), 0, 0, 0, 0, 0x20, 0)), ErrHandshake)
}
