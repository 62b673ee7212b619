// internal/middleware/cors_middleware.go
package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"projector-service/internal/config"
)

// CORSMiddleware allows the configured origins, or any origin when none or "*" is configured.
// Credentials are only allowed for explicit origins.
func CORSMiddleware(config *config.SecurityConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders:   []string{"Content-Length", RequestIDHeader},
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}

	if len(config.AllowedOrigins) == 0 || slices.Contains(config.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}

	return cors.New(corsConfig)
}
