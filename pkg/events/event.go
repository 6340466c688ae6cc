// Package events defines the tagged-variant Event type that flows through
// a ConversationThread, the Interactor, and the agent run loop.
//
// Only Message, ToolRequest, ToolResponse, and Summary ever persist in a
// thread's log; the remaining Kinds are UI-facing and transient.
package events

// Kind discriminates the variant carried by an Event.
type Kind string

const (
	KindMessage      Kind = "message"
	KindToolRequest  Kind = "tool_request"
	KindToolResponse Kind = "tool_response"
	KindSummary      Kind = "summary"

	// Non-historical, UI-facing kinds.
	KindInvite        Kind = "invite"
	KindChoice        Kind = "choice"
	KindAnswer        Kind = "answer"
	KindText          Kind = "text"
	KindWarn          Kind = "warn"
	KindError         Kind = "error"
	KindThinking      Kind = "thinking"
	KindDebug         Kind = "debug"
	KindThreadUpdate  Kind = "thread_update"
	KindTeamEvent     Kind = "team_event"
	KindOAuthRequest  Kind = "oauth_request"
	KindOAuthCallback Kind = "oauth_callback"
)

// Historical reports whether a Kind is one of the four variants that
// persist in a ConversationThread's log.
func (k Kind) Historical() bool {
	switch k {
	case KindMessage, KindToolRequest, KindToolResponse, KindSummary:
		return true
	default:
		return false
	}
}

// Role distinguishes user- from assistant-authored messages.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentPart is one ordered piece of a Message's content.
type ContentPart struct {
	Type string `json:"type"` // "text" | "image_ref"
	Text string `json:"text,omitempty"`
	// ImageRef is an opaque reference (URL, path, or provider-side file id)
	// to image content; the core never interprets it.
	ImageRef string `json:"image_ref,omitempty"`
}

// Event is the single tagged-variant record used throughout the core.
// Exactly the payload matching Kind should be non-nil.
type Event struct {
	Kind      Kind  `json:"kind"`
	Timestamp int64 `json:"timestamp"` // monotonic identity, ties broken by Seq

	// Seq disambiguates events minted within the same timestamp tick.
	Seq uint64 `json:"seq"`

	Message      *MessagePayload      `json:"message,omitempty"`
	ToolRequest  *ToolRequestPayload  `json:"tool_request,omitempty"`
	ToolResponse *ToolResponsePayload `json:"tool_response,omitempty"`
	Summary      *SummaryPayload      `json:"summary,omitempty"`
	Text         *TextPayload         `json:"text,omitempty"`
	Error        *ErrorPayload        `json:"error,omitempty"`
	TeamEvent    *TeamEventPayload    `json:"team_event,omitempty"`
	OAuth        *OAuthPayload        `json:"oauth,omitempty"`
}

// MessagePayload carries a user or assistant chat turn.
type MessagePayload struct {
	Role         Role          `json:"role"`
	Name         string        `json:"name"`
	ContentParts []ContentPart `json:"content_parts"`
}

// ToolRequestPayload is a model-issued request to invoke a tool.
type ToolRequestPayload struct {
	ToolRequestID string `json:"tool_request_id"`
	Name          string `json:"name"`
	Args          string `json:"args"` // opaque, uncanonicalized JSON
}

// ToolResponsePayload is the result of executing a ToolRequest.
type ToolResponsePayload struct {
	ToolRequestID string `json:"tool_request_id"`
	Output        string `json:"output"`
}

// SummaryPayload is produced by a compactor condensing an overflowing prefix.
type SummaryPayload struct {
	SummaryOf []int64 `json:"summary_of"` // timestamps of summarized events
	Text      string  `json:"text"`
}

// TextPayload is a generic human-readable UI message (Invite/Choice/Answer/
// Text/Warn/Thinking/ThreadUpdate all reuse this shape; Kind disambiguates).
type TextPayload struct {
	Text string `json:"text"`
}

// ErrorPayload standardizes error reporting through the Interactor.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// TeamEventPayload reports a teammate lifecycle transition.
type TeamEventPayload struct {
	TeamID       string `json:"team_id"`
	TeammateName string `json:"teammate_name"`
	Status       string `json:"status"` // spawned|working|idle|stopped
}

// OAuthPayload carries either an authorization request or its callback.
type OAuthPayload struct {
	URL   string `json:"url,omitempty"`
	State string `json:"state,omitempty"`
	Code  string `json:"code,omitempty"`
}

// NewMessage constructs a Message event without validating its fields;
// Valid reports whether the required ones are present.
func NewMessage(ts int64, seq uint64, role Role, name string, parts ...ContentPart) Event {
	return Event{
		Kind:      KindMessage,
		Timestamp: ts,
		Seq:       seq,
		Message:   &MessagePayload{Role: role, Name: name, ContentParts: parts},
	}
}

// NewToolRequest constructs a ToolRequest event.
func NewToolRequest(ts int64, seq uint64, id, name, args string) Event {
	return Event{
		Kind:        KindToolRequest,
		Timestamp:   ts,
		Seq:         seq,
		ToolRequest: &ToolRequestPayload{ToolRequestID: id, Name: name, Args: args},
	}
}

// NewToolResponse constructs a ToolResponse event.
func NewToolResponse(ts int64, seq uint64, id, output string) Event {
	return Event{
		Kind:         KindToolResponse,
		Timestamp:    ts,
		Seq:          seq,
		ToolResponse: &ToolResponsePayload{ToolRequestID: id, Output: output},
	}
}

// NewSummary constructs a Summary event.
func NewSummary(ts int64, seq uint64, text string, summaryOf []int64) Event {
	return Event{
		Kind:      KindSummary,
		Timestamp: ts,
		Seq:       seq,
		Summary:   &SummaryPayload{SummaryOf: summaryOf, Text: text},
	}
}

// NewText constructs a generic UI Text event.
func NewText(ts int64, text string) Event {
	return Event{Kind: KindText, Timestamp: ts, Text: &TextPayload{Text: text}}
}

// NewWarn constructs a Warn event.
func NewWarn(ts int64, text string) Event {
	return Event{Kind: KindWarn, Timestamp: ts, Text: &TextPayload{Text: text}}
}

// NewDebug constructs a Debug event, shown only while debug mode is on.
func NewDebug(ts int64, text string) Event {
	return Event{Kind: KindDebug, Timestamp: ts, Text: &TextPayload{Text: text}}
}

// NewThinking constructs a Thinking event.
func NewThinking(ts int64, text string) Event {
	return Event{Kind: KindThinking, Timestamp: ts, Text: &TextPayload{Text: text}}
}

// NewError constructs an Error event.
func NewError(ts int64, message string) Event {
	return Event{Kind: KindError, Timestamp: ts, Error: &ErrorPayload{Message: message}}
}

// Valid reports whether the event's required fields are present for its
// Kind.
func (e Event) Valid() bool {
	switch e.Kind {
	case KindMessage:
		return e.Message != nil && e.Message.Name != "" && (e.Message.Role == RoleUser || e.Message.Role == RoleAssistant)
	case KindToolRequest:
		return e.ToolRequest != nil && e.ToolRequest.ToolRequestID != "" && e.ToolRequest.Name != "" && e.ToolRequest.Args != ""
	case KindToolResponse:
		return e.ToolResponse != nil && e.ToolResponse.ToolRequestID != ""
	case KindSummary:
		return e.Summary != nil
	default:
		return true
	}
}

// CharLen returns the event's rendered textual length in code points, the
// metric used by the budgeted-view algorithm. Implementations MUST agree
// with this exactly: role + name + content parts + tool args + tool output,
// summed as rune counts.
func (e Event) CharLen() int {
	n := 0
	switch e.Kind {
	case KindMessage:
		if e.Message == nil {
			return 0
		}
		n += len([]rune(string(e.Message.Role)))
		n += len([]rune(e.Message.Name))
		for _, p := range e.Message.ContentParts {
			n += len([]rune(p.Text))
			n += len([]rune(p.ImageRef))
		}
	case KindToolRequest:
		if e.ToolRequest == nil {
			return 0
		}
		n += len([]rune(e.ToolRequest.Name))
		n += len([]rune(e.ToolRequest.Args))
	case KindToolResponse:
		if e.ToolResponse == nil {
			return 0
		}
		n += len([]rune(e.ToolResponse.Output))
	case KindSummary:
		if e.Summary == nil {
			return 0
		}
		n += len([]rune(e.Summary.Text))
	}
	return n
}
