// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"projector-service/internal/config"
)

const defaultLogFile = "./logs/projector-service.log"

// NewLogger builds the root logger from the logging section
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	sink, err := newWriteSyncer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, level)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// newEncoder returns a console encoder for "console" and JSON otherwise
func newEncoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	return zapcore.NewJSONEncoder(encoderConfig)
}

// newWriteSyncer returns stdout, stderr or a rotating file
func newWriteSyncer(cfg *config.LoggingConfig) (zapcore.WriteSyncer, error) {
	switch cfg.Output {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	filename := cfg.Output
	if filename == "" {
		filename = defaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}), nil
}

// ProjectorLogger carries the identity of one projector
type ProjectorLogger struct {
	*zap.Logger
}

// NewProjectorLogger creates a projector-specific logger
func NewProjectorLogger(baseLogger *zap.Logger, projectorID, host, brand string) *ProjectorLogger {
	return &ProjectorLogger{
		Logger: baseLogger.With(
			zap.String("projector_id", projectorID),
			zap.String("host", host),
			zap.String("brand", brand),
			zap.String("component", "projector"),
		),
	}
}

// LogOperation logs a finished client transaction. Failures are warnings.
func (pl *ProjectorLogger) LogOperation(operation, id string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("id", id),
		zap.Duration("duration", duration),
	}

	if err != nil {
		pl.Warn("Projector operation failed", append(fields, zap.Error(err))...)
		return
	}
	pl.Debug("Projector operation completed", fields...)
}

// LogConnection logs session lifecycle events
func (pl *ProjectorLogger) LogConnection(action string, err error) {
	if err != nil {
		pl.Error("Projector connection failed", zap.String("action", action), zap.Error(err))
		return
	}
	pl.Info("Projector connection event", zap.String("action", action))
}

// LogPowerTransition logs a change of the power state
func (pl *ProjectorLogger) LogPowerTransition(from, to string) {
	pl.Info("Projector power state changed",
		zap.String("from", from),
		zap.String("to", to),
	)
}

// OperationLogger times one inbound operation
type OperationLogger struct {
	logger    *zap.Logger
	startTime time.Time
}

// NewOperationLogger creates an operation-specific logger
func NewOperationLogger(baseLogger *zap.Logger, operationType, operationID string) *OperationLogger {
	return &OperationLogger{
		logger: baseLogger.With(
			zap.String("operation_type", operationType),
			zap.String("operation_id", operationID),
		),
		startTime: time.Now(),
	}
}

// Start logs operation start
func (ol *OperationLogger) Start(fields ...zap.Field) {
	ol.logger.Debug("Operation started", fields...)
}

// Success logs successful operation completion
func (ol *OperationLogger) Success(fields ...zap.Field) {
	ol.logger.Info("Operation completed",
		append([]zap.Field{zap.Duration("duration", time.Since(ol.startTime))}, fields...)...)
}

// Error logs operation failure
func (ol *OperationLogger) Error(err error, fields ...zap.Field) {
	ol.logger.Error("Operation failed",
		append([]zap.Field{zap.Duration("duration", time.Since(ol.startTime)), zap.Error(err)}, fields...)...)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	return &ServiceLogger{
		Logger: baseLogger.With(zap.String("service", serviceName)),
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping", zap.String("reason", reason))
}

// APIRequestLog is one served HTTP request
type APIRequestLog struct {
	Method     string
	Path       string
	RequestID  string
	ClientIP   string
	UserAgent  string
	StatusCode int
	Size       int
	Duration   time.Duration
	Probe      bool
}

// LogAPIRequest logs HTTP API requests. Probe paths are logged at debug level.
func (sl *ServiceLogger) LogAPIRequest(req APIRequestLog) {
	level := zapcore.InfoLevel
	switch {
	case req.StatusCode >= 500:
		level = zapcore.ErrorLevel
	case req.StatusCode >= 400:
		level = zapcore.WarnLevel
	case req.Probe:
		level = zapcore.DebugLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", req.RequestID),
			zap.String("client_ip", req.ClientIP),
			zap.String("user_agent", req.UserAgent),
			zap.Int("status_code", req.StatusCode),
			zap.Int("response_size", req.Size),
			zap.Duration("duration", req.Duration),
		)
	}
}

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With(zap.String("request_id", requestID))
}

// LogPanic recovers a panicking goroutine and logs it. Deferred directly.
func LogPanic(logger *zap.Logger) {
	if r := recover(); r != nil {
		logger.Error("Recovered panic",
			zap.Any("panic", r),
			zap.Stack("stacktrace"),
		)
	}
}

// CloseLogger flushes buffered entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
