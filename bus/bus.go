// Package bus implements a small in-process publish/subscribe event bus used
// to decouple the core's components (heartbeats, registry refreshes) from
// whoever wants to observe them.
package bus

import (
	"sync"

	"github.com/adapsys/enclave/logging"
)

// Handler receives the payload published on a topic. Handlers run on the
// publisher's goroutine; slow handlers slow the publisher down.
type Handler func(data any)

// Bus is a topic-keyed fan-out of events to subscribed handlers. It is safe
// for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   logging.Logger
}

// Options configure a Bus.
type Options struct {
	// Logger receives reports about panicking handlers. Defaults to NoOpLogger.
	Logger logging.Logger
}

// New constructs an empty Bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{handlers: make(map[string][]Handler), logger: opts.Logger}
}

// Subscribe registers a handler for a topic. There is no unsubscribe;
// subscriptions live for the life of the bus.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers data to every handler subscribed to topic, in
// subscription order. A panicking handler is recovered and logged so it
// cannot take down the publisher or starve later handlers.
func (b *Bus) Publish(topic string, data any) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[topic]))
	copy(handlers, b.handlers[topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(topic, h, data)
	}
}

func (b *Bus) deliver(topic string, h Handler, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "topic", topic, "panic", r)
		}
	}()
	h(data)
}
