// Package commands implements the CLI-facing command layer: parsing a raw
// input line into a slash prompt or an @agent-addressed message, and
// interpolating stored prompt command templates against user-supplied
// parameters.
package commands

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loomrun/loom/internal/coreerr"
)

// parametersToken is substituted into every command when the user supplies
// a single unstructured string and at least one command names it.
const parametersToken = "{{PARAMETERS}}"

// kvPattern matches key=value / key="value" / key='value' tokens.
var kvPattern = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|'([^']*)'|(\S+))`)

// placeholderPattern finds every {{key}} occurrence in a command template.
var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// ParseParameters parses the text following a slash command or stored
// prompt invocation. If it contains one or more key=value tokens, it is
// treated as a structured parameter map; otherwise the trimmed text is
// returned verbatim as a single unstructured string.
func ParseParameters(raw string) (params map[string]string, single string, structured bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", false
	}

	matches := kvPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return nil, raw, false
	}

	// Require the whole string to be accounted for by key=value tokens
	// (plus whitespace between them); otherwise it reads as free text
	// that happens to contain an "=" and should not be split apart.
	covered := 0
	for _, m := range matches {
		gap := strings.TrimSpace(raw[covered:m[0]])
		if gap != "" {
			return nil, raw, false
		}
		covered = m[1]
	}
	if strings.TrimSpace(raw[covered:]) != "" {
		return nil, raw, false
	}

	params = make(map[string]string, len(matches))
	for _, m := range matches {
		key := raw[m[2]:m[3]]
		var value string
		switch {
		case m[4] >= 0:
			value = raw[m[4]:m[5]]
		case m[6] >= 0:
			value = raw[m[6]:m[7]]
		case m[8] >= 0:
			value = raw[m[8]:m[9]]
		}
		params[key] = value
	}
	return params, "", true
}

// Interpolate applies the prompt interpolation rules to a prompt chain
// (one stored command per template), given the raw post-command text the
// user supplied.
//
//   - Structured (key=value) input: every {{key}} in every command is
//     substituted from the map. Any placeholder left unresolved fails
//     the whole call with a ValidationError naming every missing key.
//   - Unstructured single-string input, with at least one command
//     containing {{PARAMETERS}}: that token is substituted into every
//     command, and any other {{key}} placeholder is an error.
//   - Unstructured single-string input, no {{PARAMETERS}} anywhere: the
//     string is appended to the first command only, verbatim.
//   - No input at all: commands run as-is, still subject to the
//     unresolved-placeholder check.
func Interpolate(cmds []string, raw string) ([]string, error) {
	params, single, structured := ParseParameters(raw)

	switch {
	case structured:
		return interpolateStructured(cmds, params)
	case single != "":
		return interpolateSingle(cmds, single)
	default:
		return interpolateStructured(cmds, nil)
	}
}

func interpolateStructured(cmds []string, params map[string]string) ([]string, error) {
	missing := newOrderedSet()
	out := make([]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = placeholderPattern.ReplaceAllStringFunc(cmd, func(tok string) string {
			key := placeholderPattern.FindStringSubmatch(tok)[1]
			if v, ok := params[key]; ok {
				return v
			}
			missing.add(key)
			return tok
		})
	}
	if missing.len() > 0 {
		return nil, coreerr.NewValidationError("parameters", fmt.Sprintf("Missing required parameters: %s", missing.join()))
	}
	return out, nil
}

func interpolateSingle(cmds []string, text string) ([]string, error) {
	usesParameters := false
	for _, cmd := range cmds {
		if strings.Contains(cmd, parametersToken) {
			usesParameters = true
			break
		}
	}

	if !usesParameters {
		// No {{key}} placeholders may exist either; those would be
		// unresolved since there is no parameter map to draw from.
		missing := newOrderedSet()
		for _, cmd := range cmds {
			for _, m := range placeholderPattern.FindAllStringSubmatch(cmd, -1) {
				missing.add(m[1])
			}
		}
		if missing.len() > 0 {
			return nil, coreerr.NewValidationError("parameters", fmt.Sprintf("Missing required parameters: %s", missing.join()))
		}
		out := make([]string, len(cmds))
		copy(out, cmds)
		if len(out) > 0 {
			out[0] = strings.TrimRight(out[0], " ") + " " + text
		}
		return out, nil
	}

	missing := newOrderedSet()
	out := make([]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = placeholderPattern.ReplaceAllStringFunc(cmd, func(tok string) string {
			key := placeholderPattern.FindStringSubmatch(tok)[1]
			if key == "PARAMETERS" {
				return text
			}
			missing.add(key)
			return tok
		})
	}
	if missing.len() > 0 {
		return nil, coreerr.NewValidationError("parameters", fmt.Sprintf("Missing required parameters: %s", missing.join()))
	}
	return out, nil
}

// orderedSet records unique strings in first-insertion order, used to
// report missing parameter names in the order they appear in the
// template rather than an arbitrary map order.
type orderedSet struct {
	seen  map[string]bool
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(key string) {
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.order = append(s.order, key)
}

func (s *orderedSet) len() int { return len(s.order) }

func (s *orderedSet) join() string { return strings.Join(s.order, ", ") }
