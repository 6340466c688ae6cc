package thread

import (
	"github.com/loomrun/loom/pkg/events"
)

// Compactor condenses an overflowing prefix of events into a single
// Summary event. It may return an error, which getBudgetedView rethrows
// without mutating the thread.
type Compactor func(overflow []events.Event) (events.Event, error)

// View is the result of a budgeted read of a thread's log.
type View struct {
	Events    []events.Event
	Compacted bool
}

// totalCharLen sums CharLen across a slice of events.
func totalCharLen(evs []events.Event) int {
	total := 0
	for _, e := range evs {
		total += e.CharLen()
	}
	return total
}

// enforcePairing applies I2: drop any ToolRequest lacking a following
// ToolResponse in the slice, and any ToolResponse lacking a preceding
// ToolRequest in the slice.
func enforcePairing(evs []events.Event) []events.Event {
	hasResponse := make(map[string]bool)
	hasRequest := make(map[string]bool)
	for _, e := range evs {
		switch e.Kind {
		case events.KindToolResponse:
			if e.ToolResponse != nil {
				hasResponse[e.ToolResponse.ToolRequestID] = true
			}
		case events.KindToolRequest:
			if e.ToolRequest != nil {
				hasRequest[e.ToolRequest.ToolRequestID] = true
			}
		}
	}
	out := make([]events.Event, 0, len(evs))
	seenRequest := make(map[string]bool)
	for _, e := range evs {
		switch e.Kind {
		case events.KindToolRequest:
			if e.ToolRequest == nil || !hasResponse[e.ToolRequest.ToolRequestID] {
				continue
			}
			seenRequest[e.ToolRequest.ToolRequestID] = true
			out = append(out, e)
		case events.KindToolResponse:
			if e.ToolResponse == nil || !seenRequest[e.ToolResponse.ToolRequestID] {
				continue
			}
			out = append(out, e)
		default:
			out = append(out, e)
		}
	}
	return out
}

// partitionFromTail walks evs in reverse accumulating CharLen, stopping
// before the next event would exceed budget. Returns (overflowPrefix,
// keptTail), both in chronological order. If budget is exceeded by a
// single trailing event, that event alone is kept (never drop what
// cannot be split).
func partitionFromTail(evs []events.Event, budget int) (overflow, kept []events.Event) {
	total := 0
	splitAt := len(evs)
	for i := len(evs) - 1; i >= 0; i-- {
		l := evs[i].CharLen()
		if total+l > budget && splitAt != len(evs) {
			break
		}
		total += l
		splitAt = i
	}
	return evs[:splitAt], evs[splitAt:]
}

// moveOrphanResponsesToOverflow implements step 3: for every ToolResponse
// in kept whose matching ToolRequest is NOT in kept, move it to overflow,
// maintaining chronological order in both slices.
func moveOrphanResponsesToOverflow(overflow, kept []events.Event) (newOverflow, newKept []events.Event) {
	keptReqIDs := make(map[string]bool)
	for _, e := range kept {
		if e.Kind == events.KindToolRequest && e.ToolRequest != nil {
			keptReqIDs[e.ToolRequest.ToolRequestID] = true
		}
	}

	newKept = make([]events.Event, 0, len(kept))
	moved := make([]events.Event, 0)
	for _, e := range kept {
		if e.Kind == events.KindToolResponse && e.ToolResponse != nil && !keptReqIDs[e.ToolResponse.ToolRequestID] {
			moved = append(moved, e)
			continue
		}
		newKept = append(newKept, e)
	}

	if len(moved) == 0 {
		return overflow, kept
	}

	// Merge moved events into overflow, preserving chronological order.
	newOverflow = mergeChronological(overflow, moved)
	return newOverflow, newKept
}

func mergeChronological(a, b []events.Event) []events.Event {
	out := make([]events.Event, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if lessEvent(a[i], b[j]) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func lessEvent(x, y events.Event) bool {
	if x.Timestamp != y.Timestamp {
		return x.Timestamp < y.Timestamp
	}
	return x.Seq < y.Seq
}

// GetBudgetedView computes a budget-bounded view of the thread's log,
// mutating the thread by committing the new log so subsequent calls are
// idempotent.
func (t *Thread) GetBudgetedView(maxChars int, compactor Compactor) (View, error) {
	t.mu.Lock()
	full := make([]events.Event, len(t.events))
	copy(full, t.events)
	t.mu.Unlock()

	if maxChars <= 0 {
		view := enforcePairing(full)
		return View{Events: view, Compacted: false}, nil
	}

	overflow, kept := partitionFromTail(full, maxChars)
	overflow, kept = moveOrphanResponsesToOverflow(overflow, kept)
	kept = enforcePairing(kept)

	if compactor == nil {
		t.commitLog(kept)
		return View{Events: kept, Compacted: len(overflow) > 0}, nil
	}

	if len(overflow) == 0 {
		t.commitLog(kept)
		return View{Events: kept, Compacted: false}, nil
	}

	var summary *events.Event
	var leftoverRaw []events.Event
	for len(overflow) > 0 {
		if totalCharLen(overflow) <= maxChars {
			// The remaining overflow now fits in a single chunk: this is
			// the last round. One final summary replaces the whole
			// remaining prefix.
			sum, err := compactor(overflow)
			if err != nil {
				return View{}, err
			}
			summary = &sum
			overflow = nil
			break
		}

		headOverflow, tailOverflow := partitionFromTail(overflow, maxChars)
		if len(headOverflow) == 0 {
			// The remaining overflow is one event larger than the budget:
			// summarize it on its own and stop rather than spin forever.
			sum, err := compactor(tailOverflow)
			if err != nil {
				return View{}, err
			}
			summary = &sum
			overflow = nil
			break
		}

		sum, err := compactor(headOverflow)
		if err != nil {
			return View{}, err
		}
		summary = &sum

		if totalCharLen(tailOverflow) > maxChars {
			// tailOverflow is dominated by one or more oversized events
			// that can't be shrunk further (P2: never drop an oversized
			// event). Keep it raw instead of looping on it forever.
			leftoverRaw = tailOverflow
			overflow = nil
			break
		}
		overflow = append([]events.Event{sum}, tailOverflow...)
	}

	final := kept
	if len(leftoverRaw) > 0 {
		final = append(append([]events.Event{}, leftoverRaw...), final...)
	}
	if summary != nil {
		final = append([]events.Event{*summary}, final...)
	}
	t.commitLog(final)
	return View{Events: final, Compacted: true}, nil
}

func (t *Thread) commitLog(log []events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = log
	t.bumpModified()
}

// TruncateAtMessage replaces the log with its prefix up to index+shift,
// provided the event at eventID exists, is a Message, and is not the
// first event.
func (t *Thread) TruncateAtMessage(eventID int64, shift int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, e := range t.events {
		if e.Timestamp == eventID {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return false
	}
	if t.events[idx].Kind != events.KindMessage {
		return false
	}

	cut := idx + shift
	if cut < 0 {
		cut = 0
	}
	if cut > len(t.events) {
		cut = len(t.events)
	}
	t.events = append([]events.Event{}, t.events[:cut]...)
	t.bumpModified()
	return true
}
