// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"projector-service/internal/driver/epson"
)

// RegisterDefaultDrivers registers all built-in projector drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registry.Register(epson.Brand, epson.NewProjector)

	logger.Info("Projector drivers registered",
		zap.Strings("brands", registry.SupportedBrands()),
	)
}
