package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a pipeline event.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies the component that emitted the event.
	Source string `json:"source"`

	// CircuitID is the associated circuit representation, if any.
	CircuitID string `json:"circuit_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for pipeline events.
const (
	EventTypeGenerationStarted   = "generation.started"
	EventTypeAttemptFailed       = "generation.attempt_failed"
	EventTypeGenerationSucceeded = "generation.succeeded"
	EventTypeGenerationExhausted = "generation.exhausted"
	EventTypeTransformApplied    = "transform.applied"
	EventTypeOptimizationApplied = "optimization.applied"
	EventTypePolicyViolation     = "policy.violation"
	EventTypeRetrievalFailed     = "knowledge.retrieval_failed"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events synchronously to its subscribers and keeps
// a bounded history of recent events.
type EventPublisher struct {
	config      EventsConfig
	subscribers []subscriberEntry
	filters     []EventFilter
	history     []Event
	mu          sync.RWMutex
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) *EventPublisher {
	return &EventPublisher{config: cfg}
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) {
	if ep == nil || !ep.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	ep.mu.Lock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.Unlock()
			return
		}
	}
	if ep.config.History > 0 {
		ep.history = append(ep.history, event)
		if over := len(ep.history) - ep.config.History; over > 0 {
			ep.history = append([]Event(nil), ep.history[over:]...)
		}
	}
	subscribers := append([]subscriberEntry(nil), ep.subscribers...)
	ep.mu.Unlock()

	for _, entry := range subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// PublishGenerationStarted publishes a generation started event.
func (ep *EventPublisher) PublishGenerationStarted(description string, maxAttempts int) {
	ep.Publish(Event{
		Type:    EventTypeGenerationStarted,
		Source:  "generator",
		Message: "circuit generation started",
		Data: map[string]interface{}{
			"description":  description,
			"max_attempts": maxAttempts,
		},
	})
}

// PublishAttemptFailed publishes an event for an attempt rejected at stage.
func (ep *EventPublisher) PublishAttemptFailed(attempt int, stage string, err error) {
	ep.Publish(Event{
		Type:    EventTypeAttemptFailed,
		Source:  "generator",
		Message: err.Error(),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"attempt": attempt,
			"stage":   stage,
		},
	})
}

// PublishGenerationSucceeded publishes a generation success event.
func (ep *EventPublisher) PublishGenerationSucceeded(circuitID string, attempts int) {
	ep.Publish(Event{
		Type:      EventTypeGenerationSucceeded,
		Source:    "generator",
		CircuitID: circuitID,
		Message:   "circuit generated and verified",
		Data:      map[string]interface{}{"attempts": attempts},
	})
}

// PublishGenerationExhausted publishes an event for a request whose
// attempts all failed.
func (ep *EventPublisher) PublishGenerationExhausted(attempts int, err error) {
	ep.Publish(Event{
		Type:    EventTypeGenerationExhausted,
		Source:  "generator",
		Message: err.Error(),
		Level:   EventLevelError,
		Data:    map[string]interface{}{"attempts": attempts},
	})
}

// PublishTransformApplied publishes a transform event.
func (ep *EventPublisher) PublishTransformApplied(circuitID, name string, operationsBefore, operationsAfter int) {
	ep.Publish(Event{
		Type:      EventTypeTransformApplied,
		Source:    "transform",
		CircuitID: circuitID,
		Message:   "transform " + name + " applied",
		Data: map[string]interface{}{
			"transform":         name,
			"operations_before": operationsBefore,
			"operations_after":  operationsAfter,
		},
	})
}

// PublishOptimizationApplied publishes an optimization event.
func (ep *EventPublisher) PublishOptimizationApplied(circuitID, level string, reduced int) {
	ep.Publish(Event{
		Type:      EventTypeOptimizationApplied,
		Source:    "optimizer",
		CircuitID: circuitID,
		Message:   "optimization level " + level + " applied",
		Data: map[string]interface{}{
			"level":              level,
			"operations_reduced": reduced,
		},
	})
}

// PublishPolicyViolation publishes a circuit policy violation.
func (ep *EventPublisher) PublishPolicyViolation(circuitID, policy, message string) {
	ep.Publish(Event{
		Type:      EventTypePolicyViolation,
		Source:    "policy",
		CircuitID: circuitID,
		Message:   message,
		Level:     EventLevelWarning,
		Data:      map[string]interface{}{"policy": policy},
	})
}

// PublishRetrievalFailed publishes a knowledge provider failure.
func (ep *EventPublisher) PublishRetrievalFailed(provider string, err error) {
	ep.Publish(Event{
		Type:    EventTypeRetrievalFailed,
		Source:  "knowledge",
		Message: err.Error(),
		Level:   EventLevelWarning,
		Data:    map[string]interface{}{"provider": provider},
	})
}

// Subscribe registers a subscriber with an optional filter.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// History returns a copy of the retained events, oldest first.
func (ep *EventPublisher) History() []Event {
	if ep == nil {
		return nil
	}
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	return append([]Event(nil), ep.history...)
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}
