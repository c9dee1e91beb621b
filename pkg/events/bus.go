package events

import (
	"sync"
	"sync/atomic"

	"github.com/kcaldas/tradechat/pkg/logging"
)

const defaultTopicBuffer = 256

// EventHandler is a function that handles an event
type EventHandler func(event interface{})

// Publisher allows publishing events
type Publisher interface {
	Publish(topic string, event interface{})
}

// Subscriber allows subscribing to events
type Subscriber interface {
	Subscribe(topic string, handler EventHandler)
}

// EventBus provides both publishing and subscribing
type EventBus interface {
	Publisher
	Subscriber
}

// Topical is implemented by every event published by this module.
type Topical interface {
	Topic() string
}

// Emit publishes ev on its own topic. A nil publisher is ignored.
func Emit(p Publisher, ev Topical) {
	if p == nil {
		return
	}
	p.Publish(ev.Topic(), ev)
}

// InMemoryBus delivers events in order per topic through one worker goroutine
// per topic.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
	workers     map[string]*topicWorker
	bufferSize  int
	dropped     atomic.Int64
	closed      bool
	logger      logging.Logger
}

// NewEventBus creates a new event bus with the default buffer size.
func NewEventBus() *InMemoryBus {
	return NewEventBusWithBuffer(defaultTopicBuffer)
}

// NewEventBusWithBuffer allows configuring the per-topic worker queue size.
// A buffer of at least 1 is enforced.
func NewEventBusWithBuffer(buffer int) *InMemoryBus {
	if buffer < 1 {
		buffer = 1
	}
	return &InMemoryBus{
		subscribers: make(map[string][]EventHandler),
		workers:     make(map[string]*topicWorker),
		bufferSize:  buffer,
		logger:      logging.NewComponentLogger("events"),
	}
}

// Subscribe adds a handler for a topic. Subscriptions after Shutdown are
// ignored.
func (b *InMemoryBus) Subscribe(topic string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.subscribers[topic] = append(b.subscribers[topic], handler)
	if _, ok := b.workers[topic]; !ok {
		b.workers[topic] = newTopicWorker(b.bufferSize, b.logger.With("topic", topic))
	}
}

// Publish hands the event to the topic worker. It never blocks: when the
// topic queue is full the event is dropped and counted. Sends happen under
// the read lock.
func (b *InMemoryBus) Publish(topic string, event interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	worker, ok := b.workers[topic]
	if !ok {
		return
	}
	handlers := make([]EventHandler, len(b.subscribers[topic]))
	copy(handlers, b.subscribers[topic])

	select {
	case worker.ch <- eventEnvelope{event: event, handlers: handlers}:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event queue full, dropping event", "topic", topic)
	}
}

// DroppedCount returns the number of events dropped due to full queues.
func (b *InMemoryBus) DroppedCount() int64 {
	return b.dropped.Load()
}

// Shutdown drains and stops all topic workers. Later publishes are ignored.
// Queues close under the write lock and drain after it is released.
func (b *InMemoryBus) Shutdown() {
	b.mu.Lock()
	b.closed = true
	workers := b.workers
	b.workers = make(map[string]*topicWorker)
	for _, w := range workers {
		w.close()
	}
	b.mu.Unlock()

	for _, w := range workers {
		w.wg.Wait()
	}
}

type eventEnvelope struct {
	event    interface{}
	handlers []EventHandler
}

type topicWorker struct {
	ch       chan eventEnvelope
	wg       sync.WaitGroup
	stopOnce sync.Once
	logger   logging.Logger
}

func newTopicWorker(buffer int, logger logging.Logger) *topicWorker {
	w := &topicWorker{
		ch:     make(chan eventEnvelope, buffer),
		logger: logger,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *topicWorker) run() {
	defer w.wg.Done()
	for env := range w.ch {
		for _, handler := range env.handlers {
			w.deliver(handler, env.event)
		}
	}
}

func (w *topicWorker) deliver(h EventHandler, e interface{}) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("event handler panicked", "panic", r)
		}
	}()
	h(e)
}

func (w *topicWorker) close() {
	w.stopOnce.Do(func() { close(w.ch) })
}

// NoOpEventBus is an event bus that does nothing (for testing)
type NoOpEventBus struct{}

// Publish does nothing
func (n *NoOpEventBus) Publish(topic string, event interface{}) {}

// Subscribe does nothing
func (n *NoOpEventBus) Subscribe(topic string, handler EventHandler) {}
