// Package events provides the in-process publish/subscribe bus and the
// single event-processing loop everything in the core serializes onto.
// Handlers, timer callbacks and idle-deferred callbacks all run on one
// goroutine, so subscribers never need locks of their own.
package events

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const queueSize = 256

// Handler receives the payload published on a topic.
type Handler func(data any)

// Bus is the central publish/subscribe mechanism. Publish enqueues dispatch
// onto the loop goroutine; delivery order follows publication order.
type Bus struct {
	log logrus.FieldLogger

	mu       sync.Mutex
	handlers map[Topic][]Handler

	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// NewBus creates a bus and starts its event loop.
func NewBus(log logrus.FieldLogger) *Bus {
	b := &Bus{
		log:      log,
		handlers: make(map[Topic][]Handler),
		queue:    make(chan func(), queueSize),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case fn := <-b.queue:
			b.invoke(fn)
		case <-b.done:
			// Drain what was already enqueued before shutdown.
			for {
				select {
				case fn := <-b.queue:
					b.invoke(fn)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("panic", r).Error("event handler panicked")
		}
	}()
	fn()
}

// post enqueues fn onto the loop. Drops the call if the bus is closed.
func (b *Bus) post(fn func()) {
	select {
	case <-b.done:
	case b.queue <- fn:
	}
}

// Subscribe registers a handler for a topic. Handlers run on the event loop
// in subscription order.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers data to every subscriber of topic, asynchronously on the
// event loop. Safe to call from any goroutine, including from handlers.
func (b *Bus) Publish(topic Topic, data any) {
	b.post(func() {
		b.mu.Lock()
		hs := b.handlers[topic]
		b.mu.Unlock()
		for _, h := range hs {
			h(data)
		}
	})
}

// Defer schedules fn on the next idle pass of the loop, after everything
// already enqueued. This is the coalescing point for deferred syncs.
func (b *Bus) Defer(fn func()) {
	b.post(fn)
}

// After schedules a one-shot callback on the loop after d elapses.
func (b *Bus) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { b.post(fn) })
}

// Every schedules fn on the loop at the given interval until the returned
// stop function is called or the bus is closed.
func (b *Bus) Every(d time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(d)
	stopCh := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.post(fn)
			case <-stopCh:
				return
			case <-b.done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stopCh) }) }
}

// Sync blocks until everything published before the call has been handled.
func (b *Bus) Sync() {
	ch := make(chan struct{})
	b.post(func() { close(ch) })
	select {
	case <-ch:
	case <-b.done:
	}
}

// Close stops the loop after draining pending work.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })
}
