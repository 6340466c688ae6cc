package thread

import (
	"testing"
	"time"

	"github.com/loomrun/loom/internal/coreerr"
)

// P3: fork is idempotent by agent name, and distinct names yield distinct
// forks sharing the parent's thread id but with independent logs.
func TestForkIdempotentByName(t *testing.T) {
	parent := newTestThread()
	parent.AppendUserMessage("alice", textPart("hi"))

	a1, err := parent.Fork("researcher")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := parent.Fork("researcher")
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Fatal("expected fork(a); fork(a) to return the same *Thread")
	}

	b, err := parent.Fork("writer")
	if err != nil {
		t.Fatal(err)
	}
	if b == a1 {
		t.Fatal("expected distinct agent names to produce distinct forks")
	}
	if b.ID() != a1.ID() {
		t.Fatalf("expected forks to share the parent's thread id, got %q vs %q", b.ID(), a1.ID())
	}

	a1.AppendAgentMessage("researcher", textPart("researching"))
	if len(b.Events()) == len(a1.Events()) {
		t.Fatal("expected forks to have independent logs after diverging")
	}
}

// Forking again after Merge re-enters the same fork and marks it RUNNING.
func TestForkReenterAfterMerge(t *testing.T) {
	parent := newTestThread()
	child, err := parent.Fork("researcher")
	if err != nil {
		t.Fatal(err)
	}
	child.AddUsage(UsageDelta{Price: 1})
	parent.Merge(child)
	if child.RunStatus() != StatusStopped {
		t.Fatalf("expected merged child STOPPED, got %s", child.RunStatus())
	}

	again, err := parent.Fork("researcher")
	if err != nil {
		t.Fatal(err)
	}
	if again != child {
		t.Fatal("expected re-fork by the same name to return the existing child")
	}
	if again.RunStatus() != StatusRunning {
		t.Fatalf("expected re-entered fork RUNNING, got %s", again.RunStatus())
	}
}

// P4/S4: merge rolls the child's accumulated price into the parent and
// resets the child's own price to 0; TotalPrice reflects the rollup.
func TestMergeRollsUpPrice(t *testing.T) {
	parent := newTestThread()
	child, err := parent.Fork("researcher")
	if err != nil {
		t.Fatal(err)
	}

	child.AddUsage(UsageDelta{Price: 2.5, InputTokens: 10})
	if child.Price() != 2.5 {
		t.Fatalf("expected child price 2.5 before merge, got %v", child.Price())
	}

	parent.Merge(child)

	if parent.Price() != 2.5 {
		t.Fatalf("expected parent price 2.5 after merge, got %v", parent.Price())
	}
	if child.Price() != 0 {
		t.Fatalf("expected child price reset to 0 after merge, got %v", child.Price())
	}
	if got := parent.TotalPrice(); got != 2.5 {
		t.Fatalf("expected parent TotalPrice 2.5, got %v", got)
	}
	if got := child.TotalPrice(); got != 2.5 {
		t.Fatalf("expected child TotalPrice to include the rolled-up parent price, got %v", got)
	}
}

func TestForkMaxDelegationDepth(t *testing.T) {
	parent := New("alice", "root", WithClock(tickingClock(time.Unix(0, 0))), WithMaxDelegationDepth(1))

	child, err := parent.Fork("researcher")
	if err != nil {
		t.Fatal(err)
	}
	if child.DelegationDepth() != 1 {
		t.Fatalf("expected child delegationDepth 1, got %d", child.DelegationDepth())
	}

	_, err = child.Fork("writer")
	if err != coreerr.ErrMaxDelegationDepth {
		t.Fatalf("expected ErrMaxDelegationDepth, got %v", err)
	}
}

func TestForkNotRegisteredBeforeFork(t *testing.T) {
	parent := newTestThread()
	if _, ok := parent.ForkedThread("researcher"); ok {
		t.Fatal("expected no fork registered before Fork is called")
	}
	child, err := parent.Fork("researcher")
	if err != nil {
		t.Fatal(err)
	}
	got, ok := parent.ForkedThread("researcher")
	if !ok || got != child {
		t.Fatal("expected ForkedThread to return the registered fork")
	}
}
