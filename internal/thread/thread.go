// Package thread implements the ConversationThread: an append-only,
// deduplicated event log with budget-bounded views, fork/merge delegation,
// and usage/price accounting.
//
// A thread family is stored as an arena rooted at the thread the caller
// first constructs with New: forks are appended to the root's arena and
// reference their parent by index rather than by pointer, so totalPrice is
// a bounded walk and the family never forms a pointer cycle for the
// garbage collector to reason about.
package thread

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomrun/loom/pkg/events"
)

// RunStatus reports whether a fork is actively being driven by a run loop.
type RunStatus string

const (
	StatusStopped RunStatus = "STOPPED"
	StatusRunning RunStatus = "RUNNING"
)

// Usage accumulates per-run token and cost counters.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
	CacheWriteTokens int
	Iterations      int
	Price           float64

	// Thresholds copied in at resetUsageForRun time so the run loop can
	// check them without threading RunOptions through every call.
	IterationsThreshold int
	PriceThreshold      float64
}

// UsageDelta is the partial usage reported by a provider after one turn.
type UsageDelta struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	Price            float64
}

// clock abstracts time so tests can inject deterministic timestamps.
type clock func() time.Time

// arena is the shared state backing an entire thread family.
type arena struct {
	mu      sync.Mutex
	threads []*Thread // index 0 is always the root
}

func (a *arena) add(t *Thread) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	t.arenaIndex = len(a.threads)
	a.threads = append(a.threads, t)
	return t.arenaIndex
}

func (a *arena) at(i int) *Thread {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.threads) {
		return nil
	}
	return a.threads[i]
}

// Thread is a ConversationThread.
type Thread struct {
	mu sync.Mutex

	id       string
	username string
	name     string
	summary  string

	createdDate  time.Time
	modifiedDate time.Time

	price float64
	usage Usage

	events []events.Event

	runStatus RunStatus

	// delegationDepth is non-persisted: 0 at the root, parent+1 on forks.
	delegationDepth int
	maxDepth        int

	arena       *arena
	arenaIndex  int
	parentIndex int            // -1 for the root
	forks       map[string]int // agentName -> arena index

	seq   uint64
	clock clock
	log   *slog.Logger
}

// Option configures a new root Thread.
type Option func(*Thread)

// WithMaxDelegationDepth bounds how deep fork() may recurse before
// returning coreerr.ErrMaxDelegationDepth. Zero means unbounded.
func WithMaxDelegationDepth(depth int) Option {
	return func(t *Thread) { t.maxDepth = depth }
}

// WithClock overrides the timestamp source (tests only).
func WithClock(c func() time.Time) Option {
	return func(t *Thread) { t.clock = c }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Thread) {
		if l != nil {
			t.log = l
		}
	}
}

// New creates a root ConversationThread.
func New(username, name string, opts ...Option) *Thread {
	now := time.Now()
	t := &Thread{
		id:           uuid.NewString(),
		username:     username,
		name:         name,
		createdDate:  now,
		modifiedDate: now,
		runStatus:    StatusStopped,
		parentIndex:  -1,
		forks:        make(map[string]int),
		clock:        time.Now,
		log:          slog.Default().With("component", "thread"),
	}
	for _, o := range opts {
		o(t)
	}
	t.arena = &arena{}
	t.arena.add(t)
	return t
}

// ID returns the stable id shared by a thread and all of its forks.
func (t *Thread) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// Name returns the agent/session name associated with this thread.
func (t *Thread) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// Username returns the owning user's name.
func (t *Thread) Username() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.username
}

// SetName renames the thread (CLI "save [new-name]").
func (t *Thread) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
	t.bumpModified()
}

// Summary returns the thread's stored summary text, if any.
func (t *Thread) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// SetSummary sets the thread's summary text.
func (t *Thread) SetSummary(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary = s
}

// CreatedDate returns the thread's creation time.
func (t *Thread) CreatedDate() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.createdDate
}

// ModifiedDate returns the thread's last-modified time.
func (t *Thread) ModifiedDate() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.modifiedDate
}

// Price returns this thread's own accumulated cost (I6: excludes parents).
func (t *Thread) Price() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.price
}

// Usage returns a copy of the current run's usage counters.
func (t *Thread) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// RunStatus returns whether this fork is currently RUNNING.
func (t *Thread) RunStatus() RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runStatus
}

// DelegationDepth returns the number of forks between this thread and the
// root (0 at the root).
func (t *Thread) DelegationDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delegationDepth
}

// TotalPrice recursively sums price up the parent chain (I6).
func (t *Thread) TotalPrice() float64 {
	total := 0.0
	cur := t
	for {
		cur.mu.Lock()
		total += cur.price
		parentIdx := cur.parentIndex
		cur.mu.Unlock()
		if parentIdx < 0 {
			return total
		}
		cur = cur.arena.at(parentIdx)
		if cur == nil {
			return total
		}
	}
}

// bumpModified marks the thread modified now (I5).
func (t *Thread) bumpModified() {
	t.modifiedDate = t.clock()
}

// nextTimestamp returns a monotonically non-decreasing timestamp (ties
// broken by Seq).
func (t *Thread) nextTimestamp() (int64, uint64) {
	ts := t.clock().UnixNano()
	if len(t.events) > 0 && ts < t.events[len(t.events)-1].Timestamp {
		ts = t.events[len(t.events)-1].Timestamp
	}
	t.seq++
	return ts, t.seq
}

// Events returns a defensive copy of the full, un-budgeted log.
func (t *Thread) Events() []events.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]events.Event, len(t.events))
	copy(out, t.events)
	return out
}

// GetEventByID returns the event with the given timestamp identity, if any.
func (t *Thread) GetEventByID(id int64) (events.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.events {
		if e.Timestamp == id {
			return e, true
		}
	}
	return events.Event{}, false
}

// UserMessageCount returns the number of user-role Message events.
func (t *Thread) UserMessageCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.events {
		if e.Kind == events.KindMessage && e.Message != nil && e.Message.Role == events.RoleUser {
			n++
		}
	}
	return n
}

// Snapshot is the persisted-entity shape of a root Thread: id, identity,
// timestamps, summary, price, and its full event log. Forks are
// in-process delegation state and are never persisted.
type Snapshot struct {
	ID           string
	Username     string
	Name         string
	Summary      string
	CreatedDate  time.Time
	ModifiedDate time.Time
	Price        float64
	Events       []events.Event
}

// ToSnapshot captures t's persisted fields. Only meaningful on a root
// thread (one with no parent); forks are not independently persisted.
func (t *Thread) ToSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	evs := make([]events.Event, len(t.events))
	copy(evs, t.events)
	return Snapshot{
		ID:           t.id,
		Username:     t.username,
		Name:         t.name,
		Summary:      t.summary,
		CreatedDate:  t.createdDate,
		ModifiedDate: t.modifiedDate,
		Price:        t.price,
		Events:       evs,
	}
}

// Restore reconstructs a root Thread from a Snapshot, preserving its
// original id, timestamps, summary, price, and event log rather than
// minting a fresh thread via New.
func Restore(s Snapshot, opts ...Option) *Thread {
	t := &Thread{
		id:           s.ID,
		username:     s.Username,
		name:         s.Name,
		summary:      s.Summary,
		createdDate:  s.CreatedDate,
		modifiedDate: s.ModifiedDate,
		price:        s.Price,
		events:       append([]events.Event{}, s.Events...),
		runStatus:    StatusStopped,
		parentIndex:  -1,
		forks:        make(map[string]int),
		clock:        time.Now,
		log:          slog.Default().With("component", "thread"),
	}
	for _, o := range opts {
		o(t)
	}
	t.arena = &arena{}
	t.arena.add(t)
	return t
}

// LastAgentName returns the name on the most recent assistant Message, if any.
func (t *Thread) LastAgentName() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.events) - 1; i >= 0; i-- {
		e := t.events[i]
		if e.Kind == events.KindMessage && e.Message != nil && e.Message.Role == events.RoleAssistant {
			return e.Message.Name, true
		}
	}
	return "", false
}
