package commands

import "strings"

// Kind discriminates how a raw input line was addressed.
type Kind int

const (
	// KindAgentMessage is a plain or @agent-addressed chat turn.
	KindAgentMessage Kind = iota
	// KindPrompt is a /promptName invocation.
	KindPrompt
)

// Line is a parsed raw input line.
type Line struct {
	Kind Kind

	// AgentName is set for KindAgentMessage; empty means "use the
	// default agent" (if no @ prefix, the default agent is used).
	AgentName string
	// Text is the message body for KindAgentMessage.
	Text string

	// PromptName and Args are set for KindPrompt.
	PromptName string
	Args       string
}

// Parse classifies one raw input line: a leading "/" names a stored
// prompt, a leading "@" addresses a specific agent, and anything else is
// a message to the default agent.
func Parse(raw string) Line {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "/") {
		rest := trimmed[1:]
		name, args, _ := strings.Cut(rest, " ")
		return Line{Kind: KindPrompt, PromptName: name, Args: strings.TrimSpace(args)}
	}

	if strings.HasPrefix(trimmed, "@") {
		rest := trimmed[1:]
		name, text, _ := strings.Cut(rest, " ")
		return Line{Kind: KindAgentMessage, AgentName: name, Text: strings.TrimSpace(text)}
	}

	return Line{Kind: KindAgentMessage, Text: trimmed}
}
