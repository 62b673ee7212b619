// internal/driver/registry.go
package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"projector-service/internal/catalog"
	"projector-service/pkg/driver"
)

// ProjectorFactory creates projector clients
type ProjectorFactory func(info driver.ProjectorInfo, cat *catalog.Catalog, logger *zap.Logger, observer driver.BusyObserver) (driver.Projector, error)

// Registry manages projector driver registration and creation
type Registry struct {
	drivers map[string]ProjectorFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates a new driver registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		drivers: make(map[string]ProjectorFactory),
		logger:  logger,
	}
}

// Register registers a driver factory for brand
func (r *Registry) Register(brand string, factory ProjectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	brand = strings.ToUpper(brand)
	r.drivers[brand] = factory
	r.logger.Info("Driver registered", zap.String("brand", brand))
}

// CreateProjector builds a client for info using its brand's factory
func (r *Registry) CreateProjector(info driver.ProjectorInfo, cat *catalog.Catalog, observer driver.BusyObserver) (driver.Projector, error) {
	r.mu.RLock()
	factory, exists := r.drivers[strings.ToUpper(info.Brand)]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no driver found for brand=%s", info.Brand)
	}
	return factory(info, cat, r.logger, observer)
}

// IsSupported checks if a brand has a driver
func (r *Registry) IsSupported(brand string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.drivers[strings.ToUpper(brand)]
	return exists
}

// SupportedBrands returns all registered brands in sorted order
func (r *Registry) SupportedBrands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brands := make([]string, 0, len(r.drivers))
	for brand := range r.drivers {
		brands = append(brands, brand)
	}
	sort.Strings(brands)
	return brands
}
