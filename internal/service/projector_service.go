// internal/service/projector_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"projector-service/internal/catalog"
	"projector-service/internal/config"
	"projector-service/internal/driver/epson"
	"projector-service/internal/model"
	"projector-service/internal/utils"
	"projector-service/pkg/driver"
)

const (
	serviceSource = "projector-service"
	pollerSource  = "poller"

	powerOnCommand  = "PWR ON"
	powerOffCommand = "PWR OFF"
	powerOption     = "POWER_READ_ONLY"
)

// ProjectorFactory builds a client for a configured projector
type ProjectorFactory interface {
	CreateProjector(info driver.ProjectorInfo, cat *catalog.Catalog, observer driver.BusyObserver) (driver.Projector, error)
}

// projectorEntry is one configured projector and its cached state
type projectorEntry struct {
	info   driver.ProjectorInfo
	client driver.Projector
	logger *utils.ProjectorLogger

	mu       sync.RWMutex
	power    driver.PowerCode
	snapshot *model.PropertySnapshot
}

// ProjectorService handles projector control business logic
type ProjectorService struct {
	config     *config.Config
	catalog    *catalog.Catalog
	bus        *EventBus
	projectors map[string]*projectorEntry
	order      []string
	logger     *utils.ServiceLogger
}

// OptionValue is the decoded value of an option
type OptionValue struct {
	Option string `json:"option"`
	Label  string `json:"label"`
	Raw    string `json:"raw"`
}

// NewProjectorService creates a client for every configured projector
func NewProjectorService(
	cfg *config.Config,
	cat *catalog.Catalog,
	factory ProjectorFactory,
	bus *EventBus,
	logger *zap.Logger,
) (*ProjectorService, error) {
	ps := &ProjectorService{
		config:     cfg,
		catalog:    cat,
		bus:        bus,
		projectors: make(map[string]*projectorEntry, len(cfg.Projectors)),
		logger:     utils.NewServiceLogger(logger, serviceSource),
	}

	for _, pc := range cfg.Projectors {
		info := driver.ProjectorInfo{
			ID:             pc.ID,
			Name:           pc.Name,
			Brand:          pc.Brand,
			Host:           pc.Host,
			Port:           pc.Port,
			SerialPort:     pc.SerialPort,
			Scale:          pc.TimeoutScale,
			ConnectTimeout: pc.ConnectTimeout,
		}
		entry := &projectorEntry{
			info:     info,
			logger:   utils.NewProjectorLogger(logger, info.ID, info.Host, info.Brand),
			snapshot: model.NewPropertySnapshot(),
		}

		client, err := factory.CreateProjector(info, cat, entry.observeBusy)
		if err != nil {
			ps.Close()
			return nil, fmt.Errorf("failed to create projector %s: %w", info.ID, err)
		}
		entry.client = client

		ps.projectors[info.ID] = entry
		ps.order = append(ps.order, info.ID)
	}

	return ps, nil
}

// currentPower returns the last power state read
func (e *projectorEntry) currentPower() driver.PowerCode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.power
}

// observeBusy traces the client's lock transitions
func (e *projectorEntry) observeBusy(busy bool, label string) {
	e.logger.Debug("Projector busy state", zap.Bool("busy", busy), zap.String("label", label))
}

// Close closes every projector client
func (ps *ProjectorService) Close() {
	for _, entry := range ps.projectors {
		if entry.client == nil {
			continue
		}
		if err := entry.client.Close(); err != nil {
			entry.logger.LogConnection("close", err)
		}
	}
}

// ListProjectors returns the configured projectors in configuration order
func (ps *ProjectorService) ListProjectors() []driver.ProjectorInfo {
	infos := make([]driver.ProjectorInfo, 0, len(ps.order))
	for _, id := range ps.order {
		infos = append(infos, ps.projectors[id].info)
	}
	return infos
}

// GetStatus returns the cached view of a projector without touching the network
func (ps *ProjectorService) GetStatus(id string) (*model.ProjectorStatus, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	status := &model.ProjectorStatus{
		Info:     entry.info,
		Power:    entry.power,
		Client:   entry.client.Status(),
		Snapshot: entry.snapshot.Clone(),
	}
	if entry.power != "" {
		status.PowerLabel = entry.power.Label()
	}
	return status, nil
}

// RefreshPower reads the power state and publishes a change
func (ps *ProjectorService) RefreshPower(ctx context.Context, id string) (driver.PowerCode, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return "", err
	}
	return ps.readPower(ctx, entry, true, serviceSource)
}

// SetPower switches the projector on from Standby or off from On.
// Any other combination is recorded as skipped.
func (ps *ProjectorService) SetPower(ctx context.Context, id string, on bool) (*model.ProjectorOperation, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return nil, err
	}

	value := "OFF"
	if on {
		value = "ON"
	}
	op := model.NewProjectorOperation(id, model.OperationTypePower, "POWER", value)

	return ps.run(ctx, entry, op, false, func(ctx context.Context) error {
		current, err := ps.readPower(ctx, entry, true, serviceSource)
		if err != nil {
			return err
		}

		var command string
		var next driver.PowerCode
		switch {
		case on && current == driver.PowerStandby:
			command, next = powerOnCommand, driver.PowerWarmUp
		case !on && current == driver.PowerOn:
			command, next = powerOffCommand, driver.PowerCoolDown
		default:
			entry.logger.Warn("Power request not valid for current state",
				zap.String("requested", value),
				zap.String("current", current.Label()),
			)
			op.Status = model.OperationStatusSkipped
			op.Result = model.JSONObject{"power": current, "power_label": current.Label()}
			return nil
		}

		reply, err := ps.sendCommand(ctx, entry, op, command)
		if err != nil {
			return err
		}
		op.Reply = reply

		ps.recordPower(entry, next, serviceSource)
		op.Result = model.JSONObject{"power": next, "power_label": next.Label()}
		return nil
	})
}

// ExecuteCommand sends a catalog command and then refreshes the power state
func (ps *ProjectorService) ExecuteCommand(ctx context.Context, id, commandID string) (*model.ProjectorOperation, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return nil, err
	}
	op := model.NewProjectorOperation(id, model.OperationTypeCommand, commandID, "")

	return ps.run(ctx, entry, op, true, func(ctx context.Context) error {
		reply, err := ps.sendCommand(ctx, entry, op, commandID)
		if err != nil {
			return err
		}
		op.Reply = reply

		ps.publish(model.NewProjectorEvent(model.EventCommandExecuted, id, serviceSource, model.JSONObject{
			"command": commandID,
			"reply":   reply,
		}))

		if power, err := ps.readPower(ctx, entry, true, serviceSource); err != nil {
			entry.logger.Debug("Power refresh after command failed", zap.Error(err))
		} else {
			op.Result = model.JSONObject{"power": power, "power_label": power.Label()}
		}
		return nil
	})
}

// SetConfigValue writes a human value, reads it back and publishes the result
func (ps *ProjectorService) SetConfigValue(ctx context.Context, id, propertyID string, human int) (*model.ProjectorOperation, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return nil, err
	}
	op := model.NewProjectorOperation(id, model.OperationTypeProperty, propertyID, fmt.Sprint(human))

	return ps.run(ctx, entry, op, true, func(ctx context.Context) error {
		err := ps.retry(ctx, op, func() error {
			return entry.client.WriteConfigValue(ctx, propertyID, human)
		})
		if err != nil {
			return err
		}

		value, err := ps.readConfigValue(ctx, entry, propertyID, true)
		if err != nil {
			return err
		}

		entry.logger.Info("Property updated",
			zap.String("property", propertyID),
			zap.Int("requested", human),
			zap.Int("reported", value),
		)
		op.Result = model.JSONObject{"property": propertyID, "value": value}
		return nil
	})
}

// ReadConfigValue reads one config range or readout
func (ps *ProjectorService) ReadConfigValue(ctx context.Context, id, propertyID string) (int, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return 0, err
	}
	return ps.readConfigValue(ctx, entry, propertyID, false)
}

// GetProperty reads a raw protocol property
func (ps *ProjectorService) GetProperty(ctx context.Context, id, code string) (string, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return "", err
	}

	var raw string
	err = ps.retry(ctx, nil, func() error {
		var err error
		raw, err = entry.client.GetProperty(ctx, code)
		return err
	})
	return raw, err
}

// ReadOption reads an option and maps its raw code onto a label.
// An unmapped code yields an empty label.
func (ps *ProjectorService) ReadOption(ctx context.Context, id, optionID string) (*OptionValue, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return nil, err
	}
	option, ok := ps.catalog.Option(optionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, optionID)
	}
	return ps.readOption(ctx, entry, option, true, false)
}

// SelectOption sends the command of the choice labelled label and reads the option back
func (ps *ProjectorService) SelectOption(ctx context.Context, id, optionID, label string) (*model.ProjectorOperation, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return nil, err
	}
	option, ok := ps.catalog.Option(optionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, optionID)
	}
	if option.ReadOnly {
		return nil, fmt.Errorf("%w: %s", ErrOptionReadOnly, optionID)
	}
	choice, ok := option.ChoiceFor(label)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not one of %s", ErrUnknownChoice, label, strings.Join(option.Labels(), ", "))
	}

	op := model.NewProjectorOperation(id, model.OperationTypeOption, optionID, choice.Label)

	return ps.run(ctx, entry, op, true, func(ctx context.Context) error {
		reply, err := ps.sendCommand(ctx, entry, op, choice.Command)
		if err != nil {
			return err
		}
		op.Reply = reply

		if option.Code == "" {
			op.Result = model.JSONObject{"option": optionID, "label": choice.Label}
			return nil
		}

		value, err := ps.readOption(ctx, entry, option, true, true)
		if err != nil {
			return err
		}
		op.Result = model.JSONObject{"option": optionID, "label": value.Label, "raw": value.Raw}
		return nil
	})
}

// RunFunction executes a complex function. Read-only functions are read,
// refresh functions reload every property, the rest send "CODE value".
func (ps *ProjectorService) RunFunction(ctx context.Context, id, functionID, value string) (*model.ProjectorOperation, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return nil, err
	}
	function, ok := ps.catalog.Function(functionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, functionID)
	}
	value = strings.TrimSpace(value)
	if !function.ReadOnly && !function.TriggersRefresh && value == "" {
		return nil, fmt.Errorf("%w: %s needs a value", ErrInvalidValue, functionID)
	}

	op := model.NewProjectorOperation(id, model.OperationTypeFunction, functionID, value)

	return ps.run(ctx, entry, op, true, func(ctx context.Context) error {
		switch {
		case function.ReadOnly:
			result, err := ps.readFunction(ctx, entry, function, true, true)
			if err != nil {
				return err
			}
			op.Result = model.JSONObject{"function": functionID, "value": result}
			return nil

		case function.TriggersRefresh:
			entry.logger.Info("Refreshing all properties")
			snapshot, err := ps.refreshAll(ctx, entry, true, serviceSource)
			if err != nil {
				return err
			}
			op.Result = model.JSONObject{"properties": len(snapshot.Properties), "options": len(snapshot.Options)}
			return nil
		}

		line := value
		if function.Code != "" {
			line = function.Code + " " + value
		}

		var reply string
		err := ps.retry(ctx, op, func() error {
			var err error
			reply, err = entry.client.SendRaw(ctx, line)
			return err
		})
		if err != nil {
			return err
		}
		op.Reply = reply

		var result string
		if function.UseSetReturn {
			result = processFunctionValue(function, reply)
			ps.recordFunction(entry, functionID, result, true, serviceSource)
		} else if result, err = ps.readFunction(ctx, entry, function, true, true); err != nil {
			return err
		}

		entry.logger.Info("Function executed",
			zap.String("function", functionID),
			zap.String("line", line),
			zap.String("result", result),
		)
		op.Result = model.JSONObject{"function": functionID, "value": result}
		return nil
	})
}

// GetSerialNumber returns the projector serial number
func (ps *ProjectorService) GetSerialNumber(ctx context.Context, id string) (string, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return "", err
	}

	var serial string
	err = ps.retry(ctx, nil, func() error {
		var err error
		serial, err = entry.client.GetSerialNumber(ctx)
		return err
	})
	return serial, err
}

// RefreshProperties reads every property, option and periodic function
func (ps *ProjectorService) RefreshProperties(ctx context.Context, id string) (*model.PropertySnapshot, error) {
	entry, err := ps.entry(id)
	if err != nil {
		return nil, err
	}
	return ps.refreshAll(ctx, entry, true, serviceSource)
}

// Helper methods

func (ps *ProjectorService) entry(id string) (*projectorEntry, error) {
	entry, ok := ps.projectors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectorNotFound, id)
	}
	return entry, nil
}

// run executes an inbound operation, publishing busy events around it when
// announce is set and recording the outcome on op
func (ps *ProjectorService) run(ctx context.Context, entry *projectorEntry, op *model.ProjectorOperation, announce bool, fn func(context.Context) error) (*model.ProjectorOperation, error) {
	opLogger := utils.NewOperationLogger(entry.logger.Logger, string(op.OperationType), op.ID.String())
	opLogger.Start(zap.String("target", op.Target), zap.String("value", op.Value))

	if announce {
		ps.publishBusy(entry, true, op.Target)
		defer ps.publishBusy(entry, false, op.Target)
	}

	if err := fn(ctx); err != nil {
		op.Complete(model.OperationStatusFailed, err)
		opLogger.Error(err, zap.Int("attempts", op.Attempts))
		ps.publish(model.NewProjectorEvent(model.EventProjectorError, entry.info.ID, serviceSource, model.JSONObject{
			"operation": op.OperationType,
			"target":    op.Target,
			"error":     err.Error(),
		}).WithSeverity(model.SeverityError))
		return op, err
	}

	status := op.Status
	if status == "" {
		status = model.OperationStatusSuccess
	}
	op.Complete(status, nil)
	opLogger.Success(zap.String("status", string(op.Status)), zap.Int("attempts", op.Attempts))
	return op, nil
}

// retry calls fn until it stops reporting a busy client, the busy wait
// timeout elapses or ctx ends
func (ps *ProjectorService) retry(ctx context.Context, op *model.ProjectorOperation, fn func() error) error {
	var deadline <-chan time.Time
	if wait := ps.config.Commands.BusyWaitTimeout; wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if op != nil {
			op.Attempts++
		}
		err := fn()
		if err == nil || !errors.Is(err, epson.ErrBusy) {
			return err
		}

		ps.logger.Debug("Projector busy, will retry", zap.Error(err))
		wait := time.NewTimer(ps.config.Commands.BusyRetryDelay)
		select {
		case <-ctx.Done():
			wait.Stop()
			return err
		case <-deadline:
			wait.Stop()
			return err
		case <-wait.C:
		}
	}
}

func (ps *ProjectorService) sendCommand(ctx context.Context, entry *projectorEntry, op *model.ProjectorOperation, commandID string) (string, error) {
	var reply string
	err := ps.retry(ctx, op, func() error {
		var err error
		reply, err = entry.client.SendCommand(ctx, commandID)
		return err
	})
	return reply, err
}

func (ps *ProjectorService) readPower(ctx context.Context, entry *projectorEntry, retryBusy bool, source string) (driver.PowerCode, error) {
	var power driver.PowerCode
	read := func() error {
		var err error
		power, err = entry.client.GetPower(ctx)
		return err
	}

	var err error
	if retryBusy {
		err = ps.retry(ctx, nil, read)
	} else {
		err = read()
	}
	if err != nil {
		return "", err
	}

	ps.recordPower(entry, power, source)
	return power, nil
}

// recordPower caches power and publishes a change once per transition
func (ps *ProjectorService) recordPower(entry *projectorEntry, power driver.PowerCode, source string) {
	entry.mu.Lock()
	previous := entry.power
	entry.power = power
	entry.mu.Unlock()

	if previous == power {
		return
	}

	entry.logger.LogPowerTransition(previous.Label(), power.Label())
	ps.publish(model.NewProjectorEvent(model.EventPowerChanged, entry.info.ID, source, model.JSONObject{
		"power":          power,
		"power_label":    power.Label(),
		"previous":       previous,
		"previous_label": previous.Label(),
	}))
}

func (ps *ProjectorService) readConfigValue(ctx context.Context, entry *projectorEntry, propertyID string, force bool) (int, error) {
	var value int
	err := ps.retry(ctx, nil, func() error {
		var err error
		value, err = entry.client.ReadConfigValue(ctx, propertyID)
		return err
	})
	if err != nil {
		return 0, err
	}

	ps.recordProperty(entry, propertyID, value, force, serviceSource)
	return value, nil
}

func (ps *ProjectorService) recordProperty(entry *projectorEntry, propertyID string, value int, force bool, source string) {
	entry.mu.Lock()
	previous, seen := entry.snapshot.Properties[propertyID]
	entry.snapshot.Properties[propertyID] = value
	entry.snapshot.UpdatedAt = time.Now()
	entry.mu.Unlock()

	if !force && seen && previous == value {
		return
	}
	ps.publish(model.NewProjectorEvent(model.EventPropertyUpdated, entry.info.ID, source, model.JSONObject{
		"property": propertyID,
		"value":    value,
	}))
}

func (ps *ProjectorService) readOption(ctx context.Context, entry *projectorEntry, option catalog.OptionDescriptor, retryBusy, force bool) (*OptionValue, error) {
	var raw string
	read := func() error {
		var err error
		raw, err = entry.client.GetProperty(ctx, option.Code)
		return err
	}

	var err error
	if retryBusy {
		err = ps.retry(ctx, nil, read)
	} else {
		err = read()
	}
	if err != nil {
		return nil, err
	}

	value := &OptionValue{Option: option.ID, Raw: strings.TrimSpace(raw)}
	label, ok := option.LabelFor(raw)
	if !ok {
		entry.logger.Debug("Option value has no label",
			zap.String("option", option.ID),
			zap.String("raw", value.Raw),
		)
		return value, nil
	}
	value.Label = label

	source := serviceSource
	if !retryBusy {
		source = pollerSource
	}
	ps.recordOption(entry, option.ID, label, force, source)
	return value, nil
}

func (ps *ProjectorService) recordOption(entry *projectorEntry, optionID, label string, force bool, source string) {
	entry.mu.Lock()
	previous, seen := entry.snapshot.Options[optionID]
	entry.snapshot.Options[optionID] = label
	entry.snapshot.UpdatedAt = time.Now()
	entry.mu.Unlock()

	if !force && seen && previous == label {
		return
	}
	ps.publish(model.NewProjectorEvent(model.EventOptionUpdated, entry.info.ID, source, model.JSONObject{
		"option": optionID,
		"label":  label,
	}))
}

func (ps *ProjectorService) readFunction(ctx context.Context, entry *projectorEntry, function catalog.FunctionDescriptor, retryBusy, force bool) (string, error) {
	var opts []driver.PropertyOption
	if function.Anchor != "" {
		opts = append(opts, driver.WithAnchor(function.Anchor))
	}
	if function.KeepAnchor {
		opts = append(opts, driver.WithAnchorKept())
	}

	var raw string
	read := func() error {
		var err error
		raw, err = entry.client.GetProperty(ctx, function.Code, opts...)
		return err
	}

	var err error
	if retryBusy {
		err = ps.retry(ctx, nil, read)
	} else {
		err = read()
	}
	if err != nil {
		return "", err
	}

	value := processFunctionValue(function, raw)
	source := serviceSource
	if !retryBusy {
		source = pollerSource
	}
	ps.recordFunction(entry, function.ID, value, force, source)
	return value, nil
}

func (ps *ProjectorService) recordFunction(entry *projectorEntry, functionID, value string, force bool, source string) {
	entry.mu.Lock()
	previous, seen := entry.snapshot.Functions[functionID]
	entry.snapshot.Functions[functionID] = value
	entry.snapshot.UpdatedAt = time.Now()
	entry.mu.Unlock()

	if !force && seen && previous == value {
		return
	}
	ps.publish(model.NewProjectorEvent(model.EventFunctionUpdated, entry.info.ID, source, model.JSONObject{
		"function": functionID,
		"value":    value,
	}))
}

// refreshAll reads every config range, readout, option and periodic function.
// Individual failures are skipped.
func (ps *ProjectorService) refreshAll(ctx context.Context, entry *projectorEntry, retryBusy bool, source string) (*model.PropertySnapshot, error) {
	for _, property := range ps.catalog.AllProperties() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var value int
		read := func() error {
			var err error
			value, err = entry.client.ReadConfigValue(ctx, property.ID)
			return err
		}
		var err error
		if retryBusy {
			err = ps.retry(ctx, nil, read)
		} else {
			err = read()
		}
		if err != nil {
			entry.logger.Debug("Property read skipped", zap.String("property", property.ID), zap.Error(err))
		} else {
			ps.recordProperty(entry, property.ID, value, false, source)
		}
		ps.pause(ctx)
	}

	for _, option := range ps.catalog.Options {
		if option.ID == powerOption || option.Code == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := ps.readOption(ctx, entry, option, retryBusy, false); err != nil {
			entry.logger.Debug("Option read skipped", zap.String("option", option.ID), zap.Error(err))
		}
		ps.pause(ctx)
	}

	for _, function := range ps.catalog.Functions {
		if function.NoPeriodicUpdate || function.Code == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := ps.readFunction(ctx, entry, function, retryBusy, false); err != nil {
			entry.logger.Debug("Function read skipped", zap.String("function", function.ID), zap.Error(err))
		}
		ps.pause(ctx)
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.snapshot.Clone(), nil
}

// pause waits the inter-read delay or until ctx ends
func (ps *ProjectorService) pause(ctx context.Context) {
	delay := ps.config.Polling.InterReadDelay
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (ps *ProjectorService) publishBusy(entry *projectorEntry, busy bool, label string) {
	ps.publish(model.NewProjectorEvent(model.EventBusyChanged, entry.info.ID, serviceSource, model.JSONObject{
		"busy":  busy,
		"label": label,
	}))
}

func (ps *ProjectorService) publish(event *model.ProjectorEvent) {
	if ps.bus != nil {
		ps.bus.Publish(event)
	}
}

// processFunctionValue trims a function reply; numbers-only functions keep
// digits separated by single spaces
func processFunctionValue(function catalog.FunctionDescriptor, raw string) string {
	if !function.NumbersOnly {
		return strings.TrimSpace(raw)
	}

	kept := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, raw)
	return strings.Join(strings.Fields(kept), " ")
}
