package rules

import (
	"errors"
	"reflect"
	"testing"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/model"
)

func TestParseRenderRule(t *testing.T) {
	def, err := ParseRenderRule("target=10.0.,shape=box,color=red")
	if err != nil {
		t.Fatalf("ParseRenderRule failed: %v", err)
	}
	want := config.RenderRuleDef{Prefix: "10.0.", Shape: "box", Color: "red"}
	if def != want {
		t.Errorf("Expected %+v, got %+v", want, def)
	}

	def, err = ParseRenderRule("color=green,target=192.168.0.0/16")
	if err != nil {
		t.Fatalf("ParseRenderRule failed: %v", err)
	}
	if def.Prefix != "192.168.0.0/16" || def.Shape != "" || def.Color != "green" {
		t.Errorf("Unexpected definition: %+v", def)
	}
}

func TestParseRenderRule_Invalid(t *testing.T) {
	for _, entry := range []string{
		"shape=box,color=red",
		"target=10.,shape=box,color=red,extra=1",
		"target=10.,size=big",
		"target10.",
		"target=10.,target=11.",
	} {
		_, err := ParseRenderRule(entry)
		var cerr *model.ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("ParseRenderRule(%q): expected ConfigurationError, got %v", entry, err)
		}
	}
}

func TestParseFlagRule(t *testing.T) {
	def, err := ParseFlagRule("origin=10.0.0.1|10.0.0.2,destination=8.8.8.8,color=red")
	if err != nil {
		t.Fatalf("ParseFlagRule failed: %v", err)
	}
	if !reflect.DeepEqual(def.Origins, []string{"10.0.0.1", "10.0.0.2"}) {
		t.Errorf("Unexpected origins: %v", def.Origins)
	}
	if !reflect.DeepEqual(def.Destinations, []string{"8.8.8.8"}) {
		t.Errorf("Unexpected destinations: %v", def.Destinations)
	}
	if def.Color != "red" {
		t.Errorf("Expected color red, got %s", def.Color)
	}

	def, err = ParseFlagRule("origin=a,destination=b")
	if err != nil {
		t.Fatalf("ParseFlagRule without color failed: %v", err)
	}
	if def.Color != DefaultColor {
		t.Errorf("Expected default color %s, got %s", DefaultColor, def.Color)
	}
	if _, err := ParseFlagRule("origin=a,destination=b,shape=box"); err == nil {
		t.Error("Expected an error for an unknown flag item")
	}
}

func TestParseLabel(t *testing.T) {
	def, err := ParseLabel("10.0.0.1=my gateway")
	if err != nil {
		t.Fatalf("ParseLabel failed: %v", err)
	}
	if def.Address != "10.0.0.1" || def.Label != "my gateway" {
		t.Errorf("Unexpected label: %+v", def)
	}
	for _, entry := range []string{"10.0.0.1", "=label", "10.0.0.1=", "a=b=c"} {
		if _, err := ParseLabel(entry); err == nil {
			t.Errorf("ParseLabel(%q): expected error", entry)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.RulesConfig{
		Render: []config.RenderRuleDef{{Prefix: "10.", Shape: "box"}},
		Labels: []config.LabelDef{{Address: "10.0.0.1", Label: "file"}},
	}
	errs := ApplyFlags(&cfg,
		[]string{"target=10.0.0.1,shape=circle", "bogus"},
		[]string{"origin=a,destination=b,color=red"},
		[]string{"10.0.0.1=cli"},
	)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error, got %v", errs)
	}
	if len(cfg.Render) != 2 || cfg.Render[0].Prefix != "10.0.0.1" {
		t.Errorf("Command line render rules must come first: %+v", cfg.Render)
	}
	if len(cfg.Flags) != 1 {
		t.Errorf("Expected 1 flag rule, got %+v", cfg.Flags)
	}

	engine, labels, loadErrs := Load(cfg)
	if len(loadErrs) != 0 {
		t.Fatalf("Unexpected load errors: %v", loadErrs)
	}
	if shape, _ := engine.ClassifyNode("10.0.0.1"); shape != "circle" {
		t.Errorf("Expected command line rule to win, got %s", shape)
	}
	if labels["10.0.0.1"] != "cli" {
		t.Errorf("Expected command line label to win, got %s", labels["10.0.0.1"])
	}
}
