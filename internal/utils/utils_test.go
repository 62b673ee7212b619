package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"projector-service/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := NewLogger(&config.LoggingConfig{Level: "chatty", Output: "stdout"})
		assert.Error(t, err)
	})

	t.Run("writes to rotating file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "service.log")
		logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: path, MaxSize: 1})
		require.NoError(t, err)

		logger.Info("hello", zap.String("projector_id", "cinema"))
		logger.Debug("hidden")
		require.NoError(t, CloseLogger(logger))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &entry))
		assert.Equal(t, "hello", entry["message"])
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "cinema", entry["projector_id"])
		assert.NotContains(t, string(data), "hidden")
	})
}

func TestProjectorLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pl := NewProjectorLogger(zap.New(core), "cinema", "10.0.0.5", "EPSON")

	pl.LogOperation("GetPower", "PWR", 5*time.Millisecond, nil)
	pl.LogOperation("GetPower", "PWR", 5*time.Millisecond, errors.New("timeout"))
	pl.LogPowerTransition("Standby, Network On", "Warm Up")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "cinema", entries[2].ContextMap()["projector_id"])
	assert.Equal(t, "Warm Up", entries[2].ContextMap()["to"])
}

func TestLogPanic(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	assert.NotPanics(t, func() {
		defer LogPanic(zap.New(core))
		panic("poller exploded")
	})
	assert.Equal(t, 1, logs.FilterMessage("Recovered panic").Len())
}

func TestErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status int
		code   string
	}{
		{http.StatusConflict, "PROJECTOR_BUSY"},
		{http.StatusServiceUnavailable, "PROJECTOR_NOT_READY"},
		{http.StatusGatewayTimeout, "PROJECTOR_UNREACHABLE"},
		{http.StatusTeapot, "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Set(RequestIDKey, "req-1")

			ErrorResponse(c, tt.status, "failed", errors.New("details"))

			var response APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, response.Success)
			assert.Equal(t, tt.code, response.Error.Code)
			assert.Equal(t, "details", response.Error.Details)
			assert.Equal(t, "req-1", response.RequestID)
		})
	}
}
