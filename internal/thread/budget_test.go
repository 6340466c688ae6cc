package thread

import (
	"fmt"
	"testing"
	"time"

	"github.com/loomrun/loom/pkg/events"
)

// S3-style budget split: build a log whose per-event CharLen we control
// exactly, and verify the tail partition, orphan handling, and I2
// enforcement land where expected for OUR chosen lengths.
func TestBudgetSplitDropsOlderPairs(t *testing.T) {
	th := newTestThread()

	// U(~150 chars)
	th.AppendUserMessage("alice", textPart(repeat("u", 140)))
	// Req/Resp pair "e" (~100 chars each)
	th.AppendToolRequests("bot", []events.ToolRequestPayload{{ToolRequestID: "e", Name: "search", Args: repeat("a", 90)}})
	th.AppendToolResponses("alice", []events.ToolResponsePayload{{ToolRequestID: "e", Output: repeat("b", 90)}})
	// small user message
	th.AppendUserMessage("alice", textPart(repeat("u", 10)))
	// Req/Resp pair "s" (65/30 chars)
	th.AppendToolRequests("bot", []events.ToolRequestPayload{{ToolRequestID: "s", Name: "fetch", Args: repeat("c", 60)}})
	th.AppendToolResponses("alice", []events.ToolResponsePayload{{ToolRequestID: "s", Output: repeat("d", 30)}})
	// final assistant message, small
	th.AppendAgentMessage("bot", textPart("Recent response"))

	view, err := th.GetBudgetedView(40, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Budget is tight enough that only the trailing assistant message
	// survives; everything else, including the dangling "s" pair whose
	// request would be orphaned once its partner falls out, is dropped.
	if len(view.Events) != 1 {
		t.Fatalf("expected exactly 1 surviving event, got %d: %+v", len(view.Events), view.Events)
	}
	if view.Events[0].Kind != events.KindMessage || view.Events[0].Message.Role != events.RoleAssistant {
		t.Fatalf("expected the surviving event to be the final assistant message, got %+v", view.Events[0])
	}
	if !view.Compacted {
		t.Fatal("expected Compacted=true when a budget is supplied and events were dropped")
	}

	// Idempotence: calling again on the now-committed (already budgeted) log
	// returns the same view.
	view2, err := th.GetBudgetedView(40, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(view2.Events) != len(view.Events) {
		t.Fatalf("expected idempotent view, got %d vs %d", len(view2.Events), len(view.Events))
	}
}

func TestBudgetKeepsEverythingWhenUnset(t *testing.T) {
	th := newTestThread()
	th.AppendUserMessage("alice", textPart("hello"))
	th.AppendAgentMessage("bot", textPart("hi"))

	view, err := th.GetBudgetedView(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if view.Compacted {
		t.Fatal("expected Compacted=false when no budget is set")
	}
	if len(view.Events) != 2 {
		t.Fatalf("expected all 2 events kept, got %d", len(view.Events))
	}
}

// P2-style: a single oversized event is never dropped.
func TestOversizedSingleEventNeverDropped(t *testing.T) {
	th := newTestThread()
	th.AppendUserMessage("alice", textPart(repeat("x", 500)))

	view, err := th.GetBudgetedView(10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Events) != 1 {
		t.Fatalf("expected the oversized event to survive alone, got %d events", len(view.Events))
	}
}

func TestCompactorReplacesOverflowWithSummary(t *testing.T) {
	th := newTestThread()
	th.AppendUserMessage("alice", textPart(repeat("u", 100)))
	th.AppendUserMessage("bob", textPart(repeat("v", 100)))
	th.AppendAgentMessage("bot", textPart("short"))

	calls := 0
	compactor := func(overflow []events.Event) (events.Event, error) {
		calls++
		return events.NewSummary(time.Now().UnixNano(), 0, fmt.Sprintf("summarized %d events", len(overflow)), nil), nil
	}

	view, err := th.GetBudgetedView(20, compactor)
	if err != nil {
		t.Fatal(err)
	}
	if calls == 0 {
		t.Fatal("expected compactor to be invoked")
	}
	if view.Events[0].Kind != events.KindSummary {
		t.Fatalf("expected a Summary event to lead the view, got %+v", view.Events[0])
	}
}

func TestCompactorErrorLeavesThreadUnchanged(t *testing.T) {
	th := newTestThread()
	th.AppendUserMessage("alice", textPart(repeat("u", 100)))
	th.AppendAgentMessage("bot", textPart(repeat("v", 100)))
	before := th.Events()

	boom := fmt.Errorf("boom")
	_, err := th.GetBudgetedView(10, func([]events.Event) (events.Event, error) {
		return events.Event{}, boom
	})
	if err == nil {
		t.Fatal("expected compactor error to propagate")
	}

	after := th.Events()
	if len(after) != len(before) {
		t.Fatalf("expected thread log unchanged on compactor error, before=%d after=%d", len(before), len(after))
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, s[0])
	}
	return string(out)
}
