package thread

import (
	"encoding/json"

	"github.com/loomrun/loom/pkg/events"
)

// appendMessage implements I4 (adjacent coalescing), I1, I5 for both user
// and assistant authorship.
func (t *Thread) appendMessage(role events.Role, name string, part events.ContentPart) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.events); n > 0 {
		last := &t.events[n-1]
		if last.Kind == events.KindMessage && last.Message != nil &&
			last.Message.Role == role && last.Message.Name == name {
			last.Message.ContentParts = append(last.Message.ContentParts, part)
			t.bumpModified()
			return
		}
	}

	ts, seq := t.nextTimestamp()
	t.events = append(t.events, events.NewMessage(ts, seq, role, name, part))
	t.bumpModified()
}

// AppendUserMessage appends (or coalesces into the prior message) a
// user-authored content part.
func (t *Thread) AppendUserMessage(name string, part events.ContentPart) {
	t.appendMessage(events.RoleUser, name, part)
}

// AppendAgentMessage appends (or coalesces into the prior message) an
// assistant-authored content part.
func (t *Thread) AppendAgentMessage(name string, part events.ContentPart) {
	t.appendMessage(events.RoleAssistant, name, part)
}

// AppendToolRequests appends well-formed tool-call requests, silently
// dropping any missing an id, name, or args.
func (t *Thread) AppendToolRequests(agentName string, requests []events.ToolRequestPayload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range requests {
		if r.ToolRequestID == "" || r.Name == "" || r.Args == "" {
			continue
		}
		ts, seq := t.nextTimestamp()
		t.events = append(t.events, events.NewToolRequest(ts, seq, r.ToolRequestID, r.Name, r.Args))
	}
	t.bumpModified()
}

// similarKey is the dedup key for a tool request: raw string equality on
// (name, args), deliberately not parsing args.
func similarKey(name, args string) string {
	return name + "\x00" + args
}

// AppendToolResponses appends tool responses, applying I3 deduplication:
// for each response whose matching request shares (name, args) with any
// earlier request, all such earlier requests (and any responses already
// pointing to them) are removed before the new response is appended.
// Responses within the same batch are processed in list order, so a
// later response in the batch subsumes an earlier one that targets a
// similar call.
func (t *Thread) AppendToolResponses(username string, responses []events.ToolResponsePayload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range responses {
		t.appendOneToolResponseLocked(r)
	}
	t.bumpModified()
}

func (t *Thread) appendOneToolResponseLocked(r events.ToolResponsePayload) {
	if r.ToolRequestID == "" {
		return
	}

	// Find the request this response answers, if present.
	var matched *events.ToolRequestPayload
	for i := range t.events {
		e := t.events[i]
		if e.Kind == events.KindToolRequest && e.ToolRequest != nil && e.ToolRequest.ToolRequestID == r.ToolRequestID {
			matched = e.ToolRequest
			break
		}
	}

	if matched != nil {
		key := similarKey(matched.Name, matched.Args)
		filtered := t.events[:0:0]
		removedIDs := make(map[string]bool)
		for _, e := range t.events {
			if e.Kind == events.KindToolRequest && e.ToolRequest != nil &&
				e.ToolRequest.ToolRequestID != r.ToolRequestID &&
				similarKey(e.ToolRequest.Name, e.ToolRequest.Args) == key {
				removedIDs[e.ToolRequest.ToolRequestID] = true
				continue
			}
			if e.Kind == events.KindToolResponse && e.ToolResponse != nil && removedIDs[e.ToolResponse.ToolRequestID] {
				continue
			}
			filtered = append(filtered, e)
		}
		t.events = filtered
	}

	ts, seq := t.nextTimestamp()
	t.events = append(t.events, events.NewToolResponse(ts, seq, r.ToolRequestID, r.Output))
}

// MarshalJSONArgs is a convenience for producing the stable,
// uncanonicalized JSON string AppendToolResponses' dedup key relies on.
func MarshalJSONArgs(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
