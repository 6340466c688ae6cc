// Package tasklist implements the shared, claimable task DAG teammates use
// to coordinate work within a Team.
package tasklist

import (
	"sync"

	"github.com/loomrun/loom/internal/coreerr"
	"github.com/loomrun/loom/internal/telemetry"
)

// Status is a Task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Task is a unit of work in the shared list.
type Task struct {
	ID           uint64
	Description  string
	Dependencies []uint64
	Assignee     string
	Status       Status
	Result       string
}

// copy returns a defensive value copy (Dependencies re-sliced).
func (t Task) copy() Task {
	deps := make([]uint64, len(t.Dependencies))
	copy(deps, t.Dependencies)
	t.Dependencies = deps
	return t
}

// TaskList is the mutable shared store. All operations are internally
// synchronized and linearizable (P6).
type TaskList struct {
	mu      sync.Mutex
	nextID  uint64
	tasks   map[uint64]*Task
	order   []uint64 // insertion order, for stable List()
	metrics *telemetry.Metrics
}

// New creates an empty TaskList. metrics may be nil.
func New(metrics *telemetry.Metrics) *TaskList {
	return &TaskList{tasks: make(map[uint64]*Task), metrics: metrics}
}

// CreateTask registers a new pending task. Every dependency id must refer
// to an already-existing task (this alone rules out cycles: a task can
// only depend on tasks created before it).
func (l *TaskList) CreateTask(description string, dependencies []uint64, assignee string) (Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, dep := range dependencies {
		if _, ok := l.tasks[dep]; !ok {
			return Task{}, coreerr.NewValidationError("dependencies", "unknown dependency id")
		}
	}

	l.nextID++
	deps := make([]uint64, len(dependencies))
	copy(deps, dependencies)
	t := &Task{
		ID:           l.nextID,
		Description:  description,
		Dependencies: deps,
		Assignee:     assignee,
		Status:       StatusPending,
	}
	l.tasks[t.ID] = t
	l.order = append(l.order, t.ID)
	return t.copy(), nil
}

// Claim moves a pending task to in_progress for agent, provided every
// dependency is completed and the task is unassigned or already assigned
// to agent. Exactly one of two racing Claim calls on the same task
// succeeds (P6).
func (l *TaskList) Claim(taskID uint64, agent string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[taskID]
	if !ok || t.Status != StatusPending {
		l.countClaim("rejected")
		return false
	}
	if t.Assignee != "" && t.Assignee != agent {
		l.countClaim("rejected")
		return false
	}
	for _, dep := range t.Dependencies {
		d, ok := l.tasks[dep]
		if !ok || d.Status != StatusCompleted {
			l.countClaim("rejected")
			return false
		}
	}

	t.Status = StatusInProgress
	t.Assignee = agent
	l.countClaim("succeeded")
	return true
}

// countClaim records one Claim outcome. Caller must hold l.mu.
func (l *TaskList) countClaim(outcome string) {
	if l.metrics != nil {
		l.metrics.TaskClaimAttempts.WithLabelValues(outcome).Inc()
	}
}

// Complete moves an in_progress task assigned to agent to completed,
// recording result.
func (l *TaskList) Complete(taskID uint64, agent, result string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[taskID]
	if !ok || t.Status != StatusInProgress || t.Assignee != agent {
		return false
	}
	t.Status = StatusCompleted
	t.Result = result
	return true
}

// Available returns pending tasks whose dependencies are all completed.
func (l *TaskList) Available() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Task
	for _, id := range l.order {
		t := l.tasks[id]
		if t.Status != StatusPending {
			continue
		}
		ready := true
		for _, dep := range t.Dependencies {
			if d, ok := l.tasks[dep]; !ok || d.Status != StatusCompleted {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, t.copy())
		}
	}
	return out
}

// ForAgent returns every task currently assigned to agent.
func (l *TaskList) ForAgent(agent string) []Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Task
	for _, id := range l.order {
		t := l.tasks[id]
		if t.Assignee == agent {
			out = append(out, t.copy())
		}
	}
	return out
}

// List returns every task in creation order.
func (l *TaskList) List() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Task, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.tasks[id].copy())
	}
	return out
}

// Get returns the task with the given id.
func (l *TaskList) Get(id uint64) (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.copy(), true
}

// AllCompleted reports whether every task currently in the list is
// completed (an empty list counts as fully completed).
func (l *TaskList) AllCompleted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.order {
		if l.tasks[id].Status != StatusCompleted {
			return false
		}
	}
	return true
}
