// internal/service/poller_service.go
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"projector-service/internal/config"
	"projector-service/internal/driver/epson"
	"projector-service/internal/utils"
)

// PollerService runs the background power and property pollers
type PollerService struct {
	projectors *ProjectorService
	config     config.PollingConfig
	logger     *utils.ServiceLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPollerService creates a poller over every projector of projectors
func NewPollerService(projectors *ProjectorService, cfg config.PollingConfig, logger *zap.Logger) *PollerService {
	return &PollerService{
		projectors: projectors,
		config:     cfg,
		logger:     utils.NewServiceLogger(logger, "poller-service"),
	}
}

// Start launches two pollers per projector. They run until ctx ends or Stop is called.
func (p *PollerService) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	if !p.config.Enabled {
		p.logger.Info("Polling disabled")
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for _, id := range p.projectors.order {
		entry := p.projectors.projectors[id]
		p.wg.Add(2)
		go p.pollPower(ctx, entry)
		go p.pollProperties(ctx, entry)
	}

	p.logger.Info("Pollers started",
		zap.Int("projectors", len(p.projectors.order)),
		zap.Duration("power_interval", p.config.PowerInterval),
		zap.Duration("properties_interval", p.config.PropertiesInterval),
	)
}

// Stop cancels the pollers and waits for them to return
func (p *PollerService) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Pollers stopped")
}

// pollPower reads the power state every power interval
func (p *PollerService) pollPower(ctx context.Context, entry *projectorEntry) {
	defer p.wg.Done()
	defer utils.LogPanic(entry.logger.Logger)

	for {
		if _, err := p.projectors.readPower(ctx, entry, false, pollerSource); err != nil {
			p.logReadFailure(entry, "power", err)
		}

		if !sleep(ctx, p.config.PowerInterval) {
			return
		}
	}
}

// pollProperties refreshes every property while the projector is on.
// A failed power read waits the reconnect delay instead.
func (p *PollerService) pollProperties(ctx context.Context, entry *projectorEntry) {
	defer p.wg.Done()
	defer utils.LogPanic(entry.logger.Logger)

	for {
		power, err := p.projectors.readPower(ctx, entry, false, pollerSource)
		if errors.Is(err, epson.ErrBusy) {
			power, err = entry.currentPower(), nil
		}

		delay := p.config.PropertiesInterval
		switch {
		case err != nil:
			p.logReadFailure(entry, "power", err)
			delay = p.config.ReconnectDelay
		case power.IsOn():
			if _, err := p.projectors.refreshAll(ctx, entry, false, pollerSource); err != nil && ctx.Err() == nil {
				p.logReadFailure(entry, "properties", err)
			}
		}

		if !sleep(ctx, delay) {
			return
		}
	}
}

func (p *PollerService) logReadFailure(entry *projectorEntry, what string, err error) {
	if errors.Is(err, epson.ErrBusy) || errors.Is(err, context.Canceled) {
		entry.logger.Debug("Poll skipped", zap.String("read", what), zap.Error(err))
		return
	}
	entry.logger.Warn("Poll failed", zap.String("read", what), zap.Error(err))
}

// sleep waits d and reports false when ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
