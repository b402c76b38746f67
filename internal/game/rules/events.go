package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Lifecycle events
	EventGameStarted  EventType = "GAME_STARTED"
	EventGameWon      EventType = "GAME_WON"
	EventGameFinished EventType = "GAME_FINISHED"
	EventGamePaused   EventType = "GAME_PAUSED"
	EventGameResumed  EventType = "GAME_RESUMED"

	// Turn events
	EventTurnAdvanced EventType = "TURN_ADVANCED"
	EventTurnSkipped  EventType = "TURN_SKIPPED"
	EventTurnPassed   EventType = "TURN_PASSED"

	// Card events
	EventCardPlayed     EventType = "CARD_PLAYED"
	EventCardsDiscarded EventType = "CARDS_DISCARDED"
	EventCardsDrawn     EventType = "CARDS_DRAWN"

	// Seat events
	EventPlayerJoined       EventType = "PLAYER_JOINED"
	EventPlayerLeft         EventType = "PLAYER_LEFT"
	EventPlayerDisconnected EventType = "PLAYER_DISCONNECTED"
	EventPlayerReconnected  EventType = "PLAYER_RECONNECTED"
	EventHostChanged        EventType = "HOST_CHANGED"
)

// Event represents a state change that transports or other subsystems may react to.
type Event struct {
	Type        EventType         `json:"type"`
	PlayerID    string            `json:"playerId,omitempty"`    // Player the event is about
	CardID      string            `json:"cardId,omitempty"`      // Card involved, if any
	TargetID    string            `json:"targetId,omitempty"`    // Target player or module, if any
	Amount      int               `json:"amount,omitempty"`      // Numeric value (cards drawn, turn number, etc.)
	Targets     []string          `json:"targets,omitempty"`     // Multiple targets
	Timestamp   time.Time         `json:"timestamp"`             // When the event occurred
	Metadata    map[string]string `json:"metadata,omitempty"`    // Additional metadata
	Description string            `json:"description,omitempty"` // Human-readable description
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener              // All listeners
	typedListeners map[EventType][]TypedListener // Listeners filtered by event type
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners must not subscribe or unsubscribe from inside the callback.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, playerID string) Event {
	return Event{
		Type:      eventType,
		PlayerID:  playerID,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewCardEvent creates an event about a card, optionally aimed at targets.
func NewCardEvent(eventType EventType, playerID, cardID string, targets ...string) Event {
	evt := NewEvent(eventType, playerID)
	evt.CardID = cardID
	if len(targets) > 0 {
		evt.TargetID = targets[0]
		evt.Targets = targets
	}
	return evt
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, playerID string, amount int) Event {
	evt := NewEvent(eventType, playerID)
	evt.Amount = amount
	return evt
}
