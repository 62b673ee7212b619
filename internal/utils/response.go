// internal/utils/response.go
package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

var errorCodes = map[int]string{
	http.StatusBadRequest:          "BAD_REQUEST",
	http.StatusNotFound:            "NOT_FOUND",
	http.StatusConflict:            "PROJECTOR_BUSY",
	http.StatusInternalServerError: "INTERNAL_SERVER_ERROR",
	http.StatusBadGateway:          "PROJECTOR_ERROR",
	http.StatusServiceUnavailable:  "PROJECTOR_NOT_READY",
	http.StatusGatewayTimeout:      "PROJECTOR_UNREACHABLE",
}

// ErrorCode returns the envelope code for an HTTP status
func ErrorCode(statusCode int) string {
	if code, ok := errorCodes[statusCode]; ok {
		return code
	}
	return "UNKNOWN_ERROR"
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, newResponse(c, true, message, data, nil))
}

// ErrorResponse sends an error response. The error code is derived from statusCode.
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    ErrorCode(statusCode),
		Message: message,
	}
	if err != nil {
		apiError.Details = err.Error()
	}

	c.JSON(statusCode, newResponse(c, false, message, nil, apiError))
}

// ValidationErrorResponse sends a 400 listing the offending fields
func ValidationErrorResponse(c *gin.Context, fields map[string]string) {
	apiError := &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Request validation failed",
	}

	c.JSON(http.StatusBadRequest, newResponse(c, false, "Validation failed",
		gin.H{"validation_errors": fields}, apiError))
}

func newResponse(c *gin.Context, success bool, message string, data interface{}, apiError *APIError) APIResponse {
	return APIResponse{
		Success:   success,
		Message:   message,
		Data:      data,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: c.GetString(RequestIDKey),
	}
}
