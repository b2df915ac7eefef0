package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitDeliversToSubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	received := make(chan *Event, 1)
	bus.Subscribe(PortfolioChanged, func(e *Event) { received <- e })

	bus.Emit(PortfolioChanged, "test", map[string]interface{}{"symbol": "AAA"})

	select {
	case e := <-received:
		assert.Equal(t, PortfolioChanged, e.Type)
		assert.Equal(t, "test", e.Module)
		assert.Equal(t, "AAA", e.Data["symbol"])
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestBus_EmitOnlyReachesMatchingType(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	received := make(chan *Event, 1)
	bus.Subscribe(PortfolioChanged, func(e *Event) { received <- e })

	bus.Emit(TradeExecuted, "test", nil)

	select {
	case <-received:
		t.Fatal("handler for a different event type should not fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	received := make(chan *Event, 1)
	unsubscribe := bus.Subscribe(StateChanged, func(e *Event) { received <- e })
	unsubscribe()

	bus.Emit(StateChanged, "test", nil)

	select {
	case <-received:
		t.Fatal("handler should not fire after unsubscribing")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_HandlerPanicDoesNotCrashPublisher(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	recovered := make(chan struct{}, 1)

	bus.Subscribe(ErrorOccurred, func(e *Event) { panic("boom") })
	bus.Subscribe(ErrorOccurred, func(e *Event) { recovered <- struct{}{} })

	bus.Emit(ErrorOccurred, "test", nil)

	select {
	case <-recovered:
	case <-time.After(time.Second):
		t.Fatal("sibling handler should still run after another handler panics")
	}
}

func TestBus_EmitTypedSetsTypedData(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	received := make(chan *Event, 1)
	bus.Subscribe(JobCompleted, func(e *Event) { received <- e })

	payload := &GenericEventData{Type: JobCompleted, Data: map[string]interface{}{"job_id": "1"}}
	bus.EmitTyped(JobCompleted, "jobs", payload)

	e := <-received
	require.NotNil(t, e.TypedData)
	assert.Equal(t, payload, e.GetTypedData())
}

func TestEvent_GetTypedData_FallsBackToGenericWrap(t *testing.T) {
	e := &Event{Type: ScoreUpdated, Data: map[string]interface{}{"symbol": "AAA"}}

	typed := e.GetTypedData()

	generic, ok := typed.(*GenericEventData)
	require.True(t, ok)
	assert.Equal(t, "AAA", generic.Data["symbol"])
}

func TestManager_NilManagerEmitIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.Emit(PortfolioChanged, "test", nil)
		m.EmitTyped(PortfolioChanged, "test", nil)
	})
}

func TestManager_EmitDelegatesToBus(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())
	received := make(chan *Event, 1)
	bus.Subscribe(SettingsChanged, func(e *Event) { received <- e })

	manager.Emit(SettingsChanged, "settings", map[string]interface{}{"key": "min_hold_days"})

	select {
	case e := <-received:
		assert.Equal(t, "min_hold_days", e.Data["key"])
	case <-time.After(time.Second):
		t.Fatal("manager.Emit did not reach the bus")
	}
}
