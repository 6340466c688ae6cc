package runtimeconfig

import "testing"

func TestDefaultRunOptionsSanitizeClean(t *testing.T) {
	o := DefaultRunOptions()
	if err := o.Sanitize(); err != nil {
		t.Fatalf("expected defaults to sanitize cleanly, got %v", err)
	}
}

func TestSanitizeRejectsNegativeValues(t *testing.T) {
	o := DefaultRunOptions()
	o.PriceThreshold = -1
	if err := o.Sanitize(); err == nil {
		t.Fatal("expected negative price_threshold to be rejected")
	}
}

func TestParseRunOptionsYAMLOverridesDefaults(t *testing.T) {
	doc := []byte("char_budget: 1000\niterations_threshold: 5\n")
	opts, err := ParseRunOptionsYAML(doc)
	if err != nil {
		t.Fatal(err)
	}
	if opts.CharBudget != 1000 || opts.IterationsThreshold != 5 {
		t.Fatalf("expected overrides applied, got %+v", opts)
	}
	if opts.MaxDelegationDepth != DefaultRunOptions().MaxDelegationDepth {
		t.Fatalf("expected unset fields to keep their default, got %+v", opts)
	}
}

func TestParseRunOptionsYAMLEmptyUsesDefaults(t *testing.T) {
	opts, err := ParseRunOptionsYAML(nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts != DefaultRunOptions() {
		t.Fatalf("expected defaults, got %+v", opts)
	}
}
