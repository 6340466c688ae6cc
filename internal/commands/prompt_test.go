package commands

import "testing"

type mapLookup map[string]Prompt

func (m mapLookup) Lookup(name string) (Prompt, bool) {
	p, ok := m[name]
	return p, ok
}

func TestResolveInterpolatesAndRoutesEachCommand(t *testing.T) {
	lookup := mapLookup{
		"triage": {Name: "triage", Commands: []string{"@researcher look into {{topic}}", "summarize {{topic}}"}},
	}

	lines, err := Resolve(lookup, "triage", "topic=outage")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 routed commands, got %d", len(lines))
	}
	if lines[0].Kind != KindAgentMessage || lines[0].AgentName != "researcher" || lines[0].Text != "look into outage" {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	if lines[1].Kind != KindAgentMessage || lines[1].AgentName != "" || lines[1].Text != "summarize outage" {
		t.Fatalf("unexpected second line: %+v", lines[1])
	}
}

func TestResolveUnknownPromptFails(t *testing.T) {
	if _, err := Resolve(mapLookup{}, "missing", ""); err == nil {
		t.Fatal("expected an unknown prompt name to fail")
	}
}
