package thread

import (
	"github.com/loomrun/loom/internal/coreerr"
	"github.com/loomrun/loom/pkg/events"
)

// Fork returns the existing fork registered under agentName if one exists
// (marking it RUNNING again), or creates a new one: a thread sharing the
// parent's id, a deep copy of the current event list, price reset to 0,
// delegationDepth = parent+1, and a parent back-pointer. It is therefore
// idempotent by agentName key.
func (t *Thread) Fork(agentName string) (*Thread, error) {
	t.mu.Lock()
	if idx, ok := t.forks[agentName]; ok {
		t.mu.Unlock()
		child := t.arena.at(idx)
		child.mu.Lock()
		child.runStatus = StatusRunning
		child.mu.Unlock()
		return child, nil
	}

	if t.maxDepth > 0 && t.delegationDepth+1 > t.maxDepth {
		t.mu.Unlock()
		return nil, coreerr.ErrMaxDelegationDepth
	}

	evsCopy := make([]events.Event, len(t.events))
	copy(evsCopy, t.events)

	child := &Thread{
		id:              t.id,
		username:        t.username,
		name:            agentName,
		createdDate:     t.clock(),
		modifiedDate:    t.clock(),
		events:          evsCopy,
		runStatus:       StatusRunning,
		delegationDepth: t.delegationDepth + 1,
		maxDepth:        t.maxDepth,
		arena:           t.arena,
		parentIndex:     t.arenaIndex,
		forks:           make(map[string]int),
		clock:           t.clock,
		log:             t.log,
	}
	idx := t.arena.add(child)
	t.forks[agentName] = idx
	t.mu.Unlock()

	return child, nil
}

// Merge folds child's accumulated price into self and resets child's
// price to 0 (I6). The child remains registered and can be re-entered via
// Fork with the same agentName.
func (t *Thread) Merge(child *Thread) {
	child.mu.Lock()
	delta := child.price
	child.price = 0
	child.runStatus = StatusStopped
	child.mu.Unlock()

	t.mu.Lock()
	t.price += delta
	t.mu.Unlock()
}

// ForkedThread looks up an existing fork by agent name.
func (t *Thread) ForkedThread(agentName string) (*Thread, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.forks[agentName]
	if !ok {
		return nil, false
	}
	return t.arena.at(idx), true
}
