package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of domain event flowing through the Bus.
type EventType string

const (
	PlanGenerated            EventType = "plan_generated"
	RecommendationsReady     EventType = "recommendations_ready"
	PortfolioChanged         EventType = "portfolio_changed"
	PriceUpdated             EventType = "price_updated"
	TradeExecuted            EventType = "trade_executed"
	SecurityAdded            EventType = "security_added"
	SecuritySynced           EventType = "security_synced"
	ScoreUpdated             EventType = "score_updated"
	StateChanged             EventType = "state_changed"
	SettingsChanged          EventType = "settings_changed"
	SystemStatusChanged      EventType = "system_status_changed"
	TradernetStatusChanged   EventType = "tradernet_status_changed"
	MarketsStatusChanged     EventType = "markets_status_changed"
	AllocationTargetsChanged EventType = "allocation_targets_changed"
	PlannerConfigChanged     EventType = "planner_config_changed"
	ErrorOccurred            EventType = "error_occurred"
	JobStarted               EventType = "job_started"
	JobProgress              EventType = "job_progress"
	JobCompleted             EventType = "job_completed"
	JobFailed                EventType = "job_failed"
	CashUpdated              EventType = "cash_updated"
	DepositProcessed         EventType = "deposit_processed"
	DividendCreated          EventType = "dividend_created"
	DividendDetected         EventType = "dividend_detected"
	LogFileChanged           EventType = "log_file_changed"
	PlanningStatusUpdated    EventType = "planning_status_updated"
)

// Event is a single occurrence published to the Bus. Data carries a generic
// payload (used by Emit); TypedData carries a structured payload (used by
// EmitTyped) and takes precedence when both are read via GetTypedData.
type Event struct {
	Type      EventType
	Module    string
	Timestamp time.Time
	Data      map[string]interface{}
	TypedData EventData
}

// GetTypedData returns the event's structured payload. If the event was
// published via EmitTyped, that value is returned directly; otherwise the
// generic Data map is wrapped so callers always get an EventData.
func (e *Event) GetTypedData() EventData {
	if e.TypedData != nil {
		return e.TypedData
	}
	return &GenericEventData{Type: e.Type, Data: e.Data}
}

// Handler receives events published for the type it was subscribed to.
type Handler func(*Event)

// Bus is an in-process publish/subscribe dispatcher for domain events.
// Subscribers are invoked on their own goroutine so a slow or blocking
// handler never stalls the publisher (market data feeds, job progress
// reporters, and HTTP handlers all publish from latency-sensitive paths).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType]map[int]Handler
	nextID      int
	log         zerolog.Logger
}

// NewBus creates an empty event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType]map[int]Handler),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers handler to run whenever eventType is published. The
// returned function removes the subscription; callers that never need to
// unsubscribe may discard it.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[eventType][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers[eventType], id)
		b.mu.Unlock()
	}
}

// Emit publishes an event carrying a generic payload to every subscriber of
// eventType.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	b.publish(&Event{Type: eventType, Module: module, Timestamp: time.Now(), Data: data})
}

// EmitTyped publishes an event carrying a structured payload to every
// subscriber of eventType.
func (b *Bus) EmitTyped(eventType EventType, module string, data EventData) {
	b.publish(&Event{Type: eventType, Module: module, Timestamp: time.Now(), TypedData: data})
}

func (b *Bus) publish(event *Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Type]))
	for _, h := range b.subscribers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Interface("panic", r).Str("event_type", string(event.Type)).Msg("event handler panicked")
				}
			}()
			h(event)
		}(handler)
	}
}

// Manager wraps a Bus, giving callers that only need to publish (not
// subscribe) a narrower type to depend on.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager wraps bus for publishing.
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{bus: bus, log: log.With().Str("component", "event_manager").Logger()}
}

// Emit publishes an event carrying a generic payload.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	if m == nil || m.bus == nil {
		return
	}
	m.bus.Emit(eventType, module, data)
}

// EmitTyped publishes an event carrying a structured payload.
func (m *Manager) EmitTyped(eventType EventType, module string, data EventData) {
	if m == nil || m.bus == nil {
		return
	}
	m.bus.EmitTyped(eventType, module, data)
}
