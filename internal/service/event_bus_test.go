package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projector-service/internal/model"
)

func TestEventBusFiltersByType(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	go bus.Start()
	defer bus.Stop()

	power := bus.Subscribe(model.EventPowerChanged)
	all := bus.Subscribe()
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(model.NewProjectorEvent(model.EventPropertyUpdated, "cinema", "test", nil))
	bus.Publish(model.NewProjectorEvent(model.EventPowerChanged, "cinema", "test", nil))

	event := nextEvent(t, power, model.EventPowerChanged)
	assert.Equal(t, "cinema", event.ProjectorID)

	first := <-all.C
	second := <-all.C
	assert.Equal(t, model.EventPropertyUpdated, first.EventType)
	assert.Equal(t, model.EventPowerChanged, second.EventType)

	select {
	case extra := <-power.C:
		t.Fatalf("unexpected %s", extra.EventType)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	go bus.Start()
	defer bus.Stop()

	sub := bus.Subscribe()
	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, bus.SubscriberCount())
}

func TestEventBusStop(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	done := make(chan struct{})
	go func() {
		bus.Start()
		close(done)
	}()

	sub := bus.Subscribe()
	bus.Stop()
	bus.Stop()

	_, ok := <-sub.C
	assert.False(t, ok)

	bus.Publish(model.NewProjectorEvent(model.EventPowerChanged, "cinema", "test", nil))

	late := bus.Subscribe()
	_, ok = <-late.C
	require.False(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
}
