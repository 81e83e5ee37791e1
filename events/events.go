package events

import (
	"reflect"
	"sync"
)

// EventHandler defines a function type where its input type is the generic type. A returned error stops the
// publishing of the event to any remaining handlers and is returned to the publisher.
type EventHandler[T any] func(T) error

// globalEventHandlers maps event types to handlers which are invoked any time any EventEmitter publishes an event
// of that type.
var globalEventHandlers = make(map[reflect.Type][]any)

// globalEventHandlersLock guards globalEventHandlers.
var globalEventHandlersLock sync.RWMutex

// SubscribeAny adds an EventHandler which is invoked for events of type T published by any EventEmitter.
// Handlers subscribed here live for the remainder of the process.
func SubscribeAny[T any](callback EventHandler[T]) {
	eventType := reflect.TypeOf((*T)(nil)).Elem()

	globalEventHandlersLock.Lock()
	defer globalEventHandlersLock.Unlock()
	globalEventHandlers[eventType] = append(globalEventHandlers[eventType], callback)
}

// EventEmitter describes a provider which can subscribe EventHandler methods for callback when the event type
// (generic) is published. It is safe for concurrent use; handlers are invoked on the publishing goroutine.
type EventEmitter[T any] struct {
	// subscriptions defines the EventHandler methods which should be invoked when a new event is published to this
	// emitter.
	subscriptions []EventHandler[T]

	// lock guards subscriptions and serializes handler invocation.
	lock sync.Mutex
}

// Publish emits the provided event by calling every EventHandler subscribed to this emitter, followed by any
// global handlers for the event type.
func (e *EventEmitter[T]) Publish(event T) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	for _, subscription := range e.subscriptions {
		if err := subscription(event); err != nil {
			return err
		}
	}

	eventType := reflect.TypeOf((*T)(nil)).Elem()
	globalEventHandlersLock.RLock()
	callbacks := globalEventHandlers[eventType]
	globalEventHandlersLock.RUnlock()

	for _, callback := range callbacks {
		if err := callback.(EventHandler[T])(event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe adds an EventHandler to the list of subscribed EventHandler objects for this emitter.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.subscriptions = append(e.subscriptions, callback)
}
