// Package interactor implements the bidirectional event bus the core uses
// to decouple itself from any particular front-end.
package interactor

import (
	"sync"
	"time"

	"github.com/loomrun/loom/pkg/events"
)

func nowNano() int64 { return time.Now().UnixNano() }

// Interactor publishes outbound events (the core -> front-end direction)
// and accepts subscribers for inbound ones (Answer, Choice-answer,
// OAuthCallback). Implementations must be safe for concurrent SendEvent/Inbound
// calls and must deliver events to each subscriber in publication order.
type Interactor interface {
	SendEvent(e events.Event)
	Subscribe(handler func(events.Event)) (unsubscribe func())
	Inbound(e events.Event)

	DisplayText(text string)
	Warn(text string)
	Error(text string)
	Debug(text string)
	Thinking(text string)
}

// ChanInteractor is the reference Interactor: outbound events go to a
// buffered channel read through Out(), and inbound events passed to
// Inbound are handed directly to every subscriber on the caller's
// goroutine.
type ChanInteractor struct {
	mu          sync.Mutex
	subscribers map[int]func(events.Event)
	nextSubID   int
	out         chan events.Event
}

// NewChanInteractor creates an Interactor backed by a channel of the given
// buffer size. Callers wanting to observe outbound events directly (e.g. a
// CLI render loop) should range over Out(); Subscribe is for components
// that want inbound events relayed back into the core.
func NewChanInteractor(buffer int) *ChanInteractor {
	return &ChanInteractor{
		subscribers: make(map[int]func(events.Event)),
		out:         make(chan events.Event, buffer),
	}
}

// Out exposes the outbound event channel for a front-end render loop.
func (c *ChanInteractor) Out() <-chan events.Event {
	return c.out
}

// SendEvent publishes an event. Non-blocking: if the outbound channel is
// full the event is dropped rather than stalling the caller.
func (c *ChanInteractor) SendEvent(e events.Event) {
	select {
	case c.out <- e:
	default:
	}
}

// Subscribe registers handler to receive inbound events, called serially
// in the order Inbound is invoked. Returns a function that unregisters it.
func (c *ChanInteractor) Subscribe(handler func(events.Event)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// Inbound delivers an event flowing from the front-end back into the
// core (Answer, Choice resolution, OAuthCallback) to every subscriber, in
// the order Inbound was called.
func (c *ChanInteractor) Inbound(e events.Event) {
	c.mu.Lock()
	handlers := make([]func(events.Event), 0, len(c.subscribers))
	for _, h := range c.subscribers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}

func (c *ChanInteractor) DisplayText(text string) { c.SendEvent(events.NewText(nowNano(), text)) }
func (c *ChanInteractor) Warn(text string)        { c.SendEvent(events.NewWarn(nowNano(), text)) }
func (c *ChanInteractor) Error(text string)       { c.SendEvent(events.NewError(nowNano(), text)) }
func (c *ChanInteractor) Debug(text string)       { c.SendEvent(events.NewDebug(nowNano(), text)) }
func (c *ChanInteractor) Thinking(text string)    { c.SendEvent(events.NewThinking(nowNano(), text)) }

// MultiInteractor fans SendEvent/Inbound out to multiple Interactors, for
// cases where both a CLI renderer and a test recorder must observe the
// same stream.
type MultiInteractor struct {
	targets []Interactor
}

// NewMultiInteractor composes several Interactors into one; nil entries
// are filtered out.
func NewMultiInteractor(targets ...Interactor) *MultiInteractor {
	filtered := make([]Interactor, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			filtered = append(filtered, t)
		}
	}
	return &MultiInteractor{targets: filtered}
}

func (m *MultiInteractor) SendEvent(e events.Event) {
	for _, t := range m.targets {
		t.SendEvent(e)
	}
}

func (m *MultiInteractor) Inbound(e events.Event) {
	for _, t := range m.targets {
		t.Inbound(e)
	}
}

func (m *MultiInteractor) Subscribe(handler func(events.Event)) func() {
	unsubs := make([]func(), 0, len(m.targets))
	for _, t := range m.targets {
		unsubs = append(unsubs, t.Subscribe(handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (m *MultiInteractor) DisplayText(text string) {
	for _, t := range m.targets {
		t.DisplayText(text)
	}
}

func (m *MultiInteractor) Warn(text string) {
	for _, t := range m.targets {
		t.Warn(text)
	}
}

func (m *MultiInteractor) Error(text string) {
	for _, t := range m.targets {
		t.Error(text)
	}
}

func (m *MultiInteractor) Debug(text string) {
	for _, t := range m.targets {
		t.Debug(text)
	}
}

func (m *MultiInteractor) Thinking(text string) {
	for _, t := range m.targets {
		t.Thinking(text)
	}
}
