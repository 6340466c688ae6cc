package commands

import "github.com/loomrun/loom/internal/coreerr"

// Prompt is a stored, named chain of command templates, persisted via a
// store.ConfigStore and addressed with "/<name> [args]".
type Prompt struct {
	Name     string
	Commands []string
}

// PromptLookup resolves a stored prompt by name.
type PromptLookup interface {
	Lookup(name string) (Prompt, bool)
}

// Resolve interpolates prompt's command chain against a slash-command
// invocation's argument text and returns each resulting command parsed
// for its own agent address, so a chain can fan a single invocation out
// across several agents (each command may carry its own "@agent" prefix;
// one with none addresses the default agent).
func Resolve(lookup PromptLookup, promptName, args string) ([]Line, error) {
	prompt, ok := lookup.Lookup(promptName)
	if !ok {
		return nil, coreerr.NewNotFoundError("prompt", promptName)
	}

	cmds, err := Interpolate(prompt.Commands, args)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, len(cmds))
	for i, cmd := range cmds {
		lines[i] = Parse(cmd)
	}
	return lines, nil
}
