package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"projector-service/internal/config"
	"projector-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generates an id", ""},
		{"keeps the caller id", "req-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(RequestIDMiddleware())

			var seen string
			router.GET("/", func(c *gin.Context) {
				seen = c.GetString(utils.RequestIDKey)
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, seen)
			}
		})
	}
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := utils.NewServiceLogger(zap.New(core), "http-server")

	router := gin.New()
	router.Use(RequestIDMiddleware(), LoggingMiddleware(logger))
	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for _, path := range []string{"/live", "/fail"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.FilterMessage("API request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.NotEmpty(t, entries[1].ContextMap()["request_id"])
	assert.Equal(t, "/fail", entries[1].ContextMap()["path"])
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(RequestIDMiddleware(), RecoveryMiddleware(zap.New(core)))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		origins  []string
		origin   string
		expected string
	}{
		{"any origin by default", nil, "http://panel.local", "*"},
		{"explicit origin", []string{"http://panel.local"}, "http://panel.local", "http://panel.local"},
		{"foreign origin", []string{"http://panel.local"}, "http://evil.local", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware(&config.SecurityConfig{AllowedOrigins: tt.origins}))
			router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
