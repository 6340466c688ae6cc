// Package mailbox implements per-agent FIFO message queues with
// single-shot waiter wakeup, the only synchronization primitive teammates
// use to coordinate.
package mailbox

import (
	"fmt"
	"sync"

	"github.com/loomrun/loom/internal/coreerr"
	"github.com/loomrun/loom/internal/telemetry"
)

// ShutdownSentinel is delivered to any waiter cancelled by
// CancelWaiters/CancelAllWaiters.
const ShutdownSentinel = coreerr.ShutdownSentinel

// Message is a single mailbox entry.
type Message struct {
	ID      uint64
	From    string
	To      string
	Content string
}

// Formatted renders the message the way a waiter receives it.
func (m Message) Formatted() string {
	return fmt.Sprintf("Message from %s: %s", m.From, m.Content)
}

type waiter chan string

// Mailbox holds one FIFO queue and one FIFO waiter list per recipient name.
type Mailbox struct {
	mu      sync.Mutex
	nextID  uint64
	queues  map[string][]Message
	waiters map[string][]waiter
	metrics *telemetry.Metrics
}

// New creates an empty Mailbox. metrics may be nil.
func New(metrics *telemetry.Metrics) *Mailbox {
	return &Mailbox{
		queues:  make(map[string][]Message),
		waiters: make(map[string][]waiter),
		metrics: metrics,
	}
}

// Send delivers content from one agent to another: if a waiter is already
// suspended for `to`, it is woken immediately with the formatted message
// and the message never touches the queue; otherwise the message is
// enqueued for a future Receive/WaitForMessage.
func (m *Mailbox) Send(from, to, content string) Message {
	m.mu.Lock()
	m.nextID++
	msg := Message{ID: m.nextID, From: from, To: to, Content: content}

	if ws := m.waiters[to]; len(ws) > 0 {
		w := ws[0]
		m.waiters[to] = ws[1:]
		m.mu.Unlock()
		w <- msg.Formatted()
		close(w)
		if m.metrics != nil {
			m.metrics.MailboxMessages.WithLabelValues("waiter_woken").Inc()
		}
		return msg
	}

	m.queues[to] = append(m.queues[to], msg)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.MailboxMessages.WithLabelValues("queued").Inc()
	}
	return msg
}

// Broadcast sends content from `from` to every name in `allNames` other
// than `from` itself.
func (m *Mailbox) Broadcast(from, content string, allNames []string) {
	for _, name := range allNames {
		if name == from {
			continue
		}
		m.Send(from, name, content)
	}
}

// Receive drains and returns the full queue for name.
func (m *Mailbox) Receive(name string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.queues[name]
	delete(m.queues, name)
	return msgs
}

// Peek returns a copy of name's queue without removing anything.
func (m *Mailbox) Peek(name string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[name]
	out := make([]Message, len(q))
	copy(out, q)
	return out
}

// WaitForMessage returns the formatted content of the next message
// addressed to name. If one is already queued it is dequeued and returned
// synchronously; otherwise the caller blocks on a newly registered waiter
// until Send, CancelWaiters, or CancelAllWaiters resolves it.
func (m *Mailbox) WaitForMessage(name string) string {
	m.mu.Lock()
	if q := m.queues[name]; len(q) > 0 {
		msg := q[0]
		m.queues[name] = q[1:]
		m.mu.Unlock()
		return msg.Formatted()
	}

	w := make(waiter, 1)
	m.waiters[name] = append(m.waiters[name], w)
	m.mu.Unlock()
	return <-w
}

// CancelWaiters resolves every waiter currently registered for name with
// the shutdown sentinel.
func (m *Mailbox) CancelWaiters(name string) {
	m.mu.Lock()
	ws := m.waiters[name]
	delete(m.waiters, name)
	m.mu.Unlock()
	for _, w := range ws {
		w <- ShutdownSentinel
		close(w)
	}
}

// CancelAllWaiters resolves every waiter for every registered name with
// the shutdown sentinel.
func (m *Mailbox) CancelAllWaiters() {
	m.mu.Lock()
	all := m.waiters
	m.waiters = make(map[string][]waiter)
	m.mu.Unlock()
	for _, ws := range all {
		for _, w := range ws {
			w <- ShutdownSentinel
			close(w)
		}
	}
}
