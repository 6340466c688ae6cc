// Package team implements the Team and TeammateSession lifecycle: spawning
// concurrent teammates with forked threads, mailbox-driven idle/working
// transitions, and graceful shutdown.
package team

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomrun/loom/internal/agentloop"
	"github.com/loomrun/loom/internal/coreerr"
	"github.com/loomrun/loom/internal/interactor"
	"github.com/loomrun/loom/internal/mailbox"
	"github.com/loomrun/loom/internal/tasklist"
	"github.com/loomrun/loom/internal/telemetry"
	"github.com/loomrun/loom/internal/thread"
	"github.com/loomrun/loom/pkg/events"
)

// Status is a TeammateSession's lifecycle state. It moves monotonically
// from working/idle to stopped, which is terminal.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWorking Status = "working"
	StatusStopped Status = "stopped"
)

// TeammateSession is one long-lived Agent instance running concurrently
// inside a Team, owning a forked thread.
type TeammateSession struct {
	Name   string
	agent  *agentloop.Agent
	thread *thread.Thread
	team   *Team

	mu         sync.Mutex
	status     Status
	shouldStop bool
	done       chan struct{}
}

// Status returns the teammate's current lifecycle state.
func (s *TeammateSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *TeammateSession) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	s.team.emitTeamEvent(s.Name, string(st))
}

// Shutdown requests the teammate's run loop stop: it sets the stop flag,
// cancels its mailbox waiter, and blocks until the loop observes it.
func (s *TeammateSession) Shutdown() {
	s.mu.Lock()
	s.shouldStop = true
	s.mu.Unlock()
	s.team.mailbox.CancelWaiters(s.Name)
	<-s.done
}

// run implements the teammate run loop: idle until a mailbox message or
// task arrives, process it, then go idle again until Shutdown.
func (s *TeammateSession) run(ctx context.Context, initialTask string) {
	defer close(s.done)

	input := initialTask
	for {
		s.mu.Lock()
		stop := s.shouldStop
		s.mu.Unlock()
		if stop {
			break
		}

		s.setStatus(StatusWorking)
		if err := s.runTurn(ctx, input); err != nil {
			s.team.interactor.Error(fmt.Sprintf("teammate %s: %v", s.Name, err))
		}

		s.mu.Lock()
		stop = s.shouldStop
		s.mu.Unlock()
		if stop {
			break
		}

		s.setStatus(StatusIdle)
		input = s.team.mailbox.WaitForMessage(s.Name)
		if input == mailbox.ShutdownSentinel {
			break
		}
	}
	s.setStatus(StatusStopped)
}

// runTurn drives one agent.Run call, wrapped in a span when the team
// carries a tracer.
func (s *TeammateSession) runTurn(ctx context.Context, input string) error {
	if s.team.tracer == nil {
		return s.agent.Run(ctx, s.thread, input)
	}

	ctx, span := s.team.tracer.StartTeammateTurn(ctx, s.team.ID, s.Name)
	defer span.End()

	err := s.agent.Run(ctx, s.thread, input)
	if err != nil {
		s.team.tracer.RecordError(span, err)
	}
	return err
}

// Team aggregates a lead agent, the shared task list and mailbox, and the
// currently running TeammateSessions.
type Team struct {
	ID            string
	LeadAgentName string

	TaskList *tasklist.TaskList
	mailbox  *mailbox.Mailbox

	interactor interactor.Interactor
	metrics    *telemetry.Metrics
	tracer     *telemetry.Tracer

	mu      sync.Mutex
	members map[string]*TeammateSession
}

// New creates an empty Team. metrics and tracer may both be nil.
func New(id, leadAgentName string, ia interactor.Interactor, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *Team {
	return &Team{
		ID:            id,
		LeadAgentName: leadAgentName,
		TaskList:      tasklist.New(metrics),
		mailbox:       mailbox.New(metrics),
		interactor:    ia,
		metrics:       metrics,
		tracer:        tracer,
		members:       make(map[string]*TeammateSession),
	}
}

// SpawnTeammate forks parentThread under agent.Name, starts its run loop,
// and registers it. Refuses if a teammate by that name already exists.
func (t *Team) SpawnTeammate(ctx context.Context, agent *agentloop.Agent, parentThread *thread.Thread, initialTask string) (*TeammateSession, error) {
	t.mu.Lock()
	if _, exists := t.members[agent.Name]; exists {
		t.mu.Unlock()
		return nil, coreerr.NewConflictError("teammate", agent.Name)
	}
	t.mu.Unlock()

	child, err := parentThread.Fork(agent.Name)
	if err != nil {
		return nil, err
	}

	session := &TeammateSession{
		Name:   agent.Name,
		agent:  agent,
		thread: child,
		team:   t,
		status: StatusIdle,
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	t.members[agent.Name] = session
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.ActiveTeammates.WithLabelValues(t.ID).Inc()
	}

	if preAssigned := t.TaskList.ForAgent(agent.Name); len(preAssigned) > 0 {
		t.mailbox.Send(t.LeadAgentName, agent.Name, describeTasks(preAssigned))
	}

	t.emitTeamEvent(agent.Name, "spawned")
	go session.run(ctx, initialTask)

	parentThread.Merge(child)

	return session, nil
}

// Member looks up a registered teammate by name.
func (t *Team) Member(name string) (*TeammateSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.members[name]
	return s, ok
}

// Cleanup cancels every mailbox waiter in the team, shuts down every
// member concurrently, waits for all of them, and removes the team's
// membership.
func (t *Team) Cleanup() {
	t.mailbox.CancelAllWaiters()

	t.mu.Lock()
	members := make([]*TeammateSession, 0, len(t.members))
	for _, s := range t.members {
		members = append(members, s)
	}
	t.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(members))
	for _, s := range members {
		s := s
		go func() {
			defer wg.Done()
			s.Shutdown()
		}()
	}
	wg.Wait()

	t.mu.Lock()
	for name := range t.members {
		delete(t.members, name)
		if t.metrics != nil {
			t.metrics.ActiveTeammates.WithLabelValues(t.ID).Dec()
		}
	}
	t.mu.Unlock()
}

func (t *Team) emitTeamEvent(teammateName, status string) {
	if t.interactor == nil {
		return
	}
	t.interactor.SendEvent(events.Event{
		Kind: events.KindTeamEvent,
		TeamEvent: &events.TeamEventPayload{
			TeamID:       t.ID,
			TeammateName: teammateName,
			Status:       status,
		},
	})
}

func describeTasks(tasks []tasklist.Task) string {
	msg := "You have pre-assigned tasks:"
	for _, tk := range tasks {
		msg += fmt.Sprintf(" [%d] %s;", tk.ID, tk.Description)
	}
	return msg
}
