package commands

import (
	"strings"
	"testing"
)

func TestParseParametersDetectsStructuredInput(t *testing.T) {
	params, single, structured := ParseParameters(`env=prod name="my app"`)
	if !structured {
		t.Fatal("expected structured input to be detected")
	}
	if single != "" {
		t.Fatalf("expected no single string, got %q", single)
	}
	if params["env"] != "prod" || params["name"] != "my app" {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestParseParametersSingleQuotes(t *testing.T) {
	params, _, structured := ParseParameters(`key='value with spaces'`)
	if !structured || params["key"] != "value with spaces" {
		t.Fatalf("expected single-quoted value to parse, got %+v structured=%v", params, structured)
	}
}

func TestParseParametersTreatsFreeTextAsSingleString(t *testing.T) {
	_, single, structured := ParseParameters("hello")
	if structured {
		t.Fatal("expected free text not to be treated as structured")
	}
	if single != "hello" {
		t.Fatalf("expected single string %q, got %q", "hello", single)
	}
}

func TestParseParametersEmptyInput(t *testing.T) {
	params, single, structured := ParseParameters("   ")
	if structured || single != "" || params != nil {
		t.Fatalf("expected empty input to yield no params, got params=%v single=%q structured=%v", params, single, structured)
	}
}

func TestInterpolateStructuredSubstitutesAllCommands(t *testing.T) {
	out, err := Interpolate([]string{"run {{env}} with {{name}}"}, `env=prod name="my app"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != "run prod with my app" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestInterpolateStructuredMissingParametersFails(t *testing.T) {
	_, err := Interpolate([]string{"run {{env}} with {{name}}"}, "hello")
	if err == nil {
		t.Fatal("expected missing parameters to fail")
	}
	if !strings.Contains(err.Error(), "Missing required parameters: env, name") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInterpolateUnstructuredWithoutPlaceholderAppendsToFirstCommand(t *testing.T) {
	out, err := Interpolate([]string{"summarize", "post-process"}, "the quarterly report")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "summarize the quarterly report" {
		t.Fatalf("unexpected first command: %q", out[0])
	}
	if out[1] != "post-process" {
		t.Fatalf("expected second command untouched, got %q", out[1])
	}
}

func TestInterpolateUnstructuredWithParametersToken(t *testing.T) {
	out, err := Interpolate([]string{"search {{PARAMETERS}}", "summarize {{PARAMETERS}}"}, "open issues")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "search open issues" || out[1] != "summarize open issues" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestInterpolateUnstructuredWithParametersTokenRejectsOtherPlaceholders(t *testing.T) {
	_, err := Interpolate([]string{"search {{PARAMETERS}}", "tag {{label}}"}, "open issues")
	if err == nil {
		t.Fatal("expected a stray {{key}} placeholder alongside {{PARAMETERS}} to fail")
	}
}

func TestInterpolateNoArgumentUsesCommandsVerbatim(t *testing.T) {
	out, err := Interpolate([]string{"status", "health"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "status" || out[1] != "health" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestInterpolateNoArgumentStillChecksPlaceholders(t *testing.T) {
	_, err := Interpolate([]string{"run {{env}}"}, "")
	if err == nil {
		t.Fatal("expected an unresolved placeholder with no argument to fail")
	}
}
