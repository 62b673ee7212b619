// internal/handler/errors.go
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projector-service/internal/driver/epson"
	"projector-service/internal/protocol"
	"projector-service/internal/service"
	"projector-service/internal/utils"
)

// statusForError maps service and client errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrProjectorNotFound),
		errors.Is(err, service.ErrUnknownOption),
		errors.Is(err, service.ErrUnknownFunction),
		errors.Is(err, epson.ErrUnknownCommand),
		errors.Is(err, epson.ErrUnknownProperty):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnknownChoice),
		errors.Is(err, service.ErrInvalidValue),
		errors.Is(err, service.ErrOptionReadOnly),
		errors.Is(err, epson.ErrOutOfRange),
		errors.Is(err, epson.ErrReadOnly):
		return http.StatusBadRequest
	case errors.Is(err, epson.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, epson.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, epson.ErrDeviceError),
		errors.Is(err, epson.ErrProtocol),
		errors.Is(err, protocol.ErrHandshake):
		return http.StatusBadGateway
	case protocol.IsTransportError(err),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the error envelope
func respondError(c *gin.Context, logger *utils.ServiceLogger, message string, err error) {
	status := statusForError(err)

	log := utils.LoggerWithRequestID(logger.Logger, c.GetString(utils.RequestIDKey))
	if status >= http.StatusInternalServerError {
		log.Warn(message, zap.Int("status", status), zap.Error(err))
	} else {
		log.Debug(message, zap.Int("status", status), zap.Error(err))
	}

	utils.ErrorResponse(c, status, message, err)
}
