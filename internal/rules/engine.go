package rules

import (
	"fmt"
	"net"
	"strings"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/model"

	"k8s.io/klog/v2"
)

const (
	DefaultShape = "ellipse"
	DefaultColor = "black"
)

// RenderRule assigns a shape and color to every address that equals or
// starts with Prefix. A prefix in CIDR notation also matches every address
// inside that network.
type RenderRule struct {
	Prefix string
	Shape  string
	Color  string

	network *net.IPNet
}

// NewRenderRule builds a render rule. Shape and color fall back to the
// defaults when empty.
func NewRenderRule(prefix, shape, color string) (RenderRule, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return RenderRule{}, fmt.Errorf("prefix must not be empty")
	}
	if shape == "" {
		shape = DefaultShape
	}
	if color == "" {
		color = DefaultColor
	}
	rule := RenderRule{Prefix: prefix, Shape: shape, Color: color}
	if strings.Contains(prefix, "/") {
		_, network, err := net.ParseCIDR(prefix)
		if err != nil {
			return RenderRule{}, fmt.Errorf("invalid network %q: %w", prefix, err)
		}
		rule.network = network
	}
	return rule, nil
}

// Matches reports whether the rule applies to address.
func (r RenderRule) Matches(address string) bool {
	if strings.HasPrefix(address, r.Prefix) {
		return true
	}
	if r.network != nil {
		if ip := net.ParseIP(address); ip != nil {
			return r.network.Contains(ip)
		}
	}
	return false
}

// FlagRule colors every edge whose source is one of the origins and whose
// destination is one of the destinations. Direction matters.
type FlagRule struct {
	Color string

	origins      map[string]struct{}
	destinations map[string]struct{}
}

// NewFlagRule builds a flag rule. A rule with no origins or no destinations
// is valid but never matches.
func NewFlagRule(origins, destinations []string, color string) (FlagRule, error) {
	if strings.TrimSpace(color) == "" {
		return FlagRule{}, fmt.Errorf("color must not be empty")
	}
	return FlagRule{
		Color:        color,
		origins:      toSet(origins),
		destinations: toSet(destinations),
	}, nil
}

func toSet(addresses []string) map[string]struct{} {
	set := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			set[addr] = struct{}{}
		}
	}
	return set
}

// Matches reports whether the rule applies to the flow source -> destination.
func (r FlagRule) Matches(source, destination string) bool {
	_, src := r.origins[source]
	_, dst := r.destinations[destination]
	return src && dst
}

// Engine evaluates render and flag rules in their configured order; the
// first match wins. It is immutable once built and safe for concurrent use.
// A nil Engine has no rules.
type Engine struct {
	render []RenderRule
	flags  []FlagRule
}

// NewEngine creates an engine over the given rules.
func NewEngine(render []RenderRule, flags []FlagRule) *Engine {
	return &Engine{
		render: append([]RenderRule(nil), render...),
		flags:  append([]FlagRule(nil), flags...),
	}
}

// ClassifyNode returns the shape and color of the first render rule matching
// address, or the defaults.
func (e *Engine) ClassifyNode(address string) (shape, color string) {
	if e != nil {
		for _, rule := range e.render {
			if rule.Matches(address) {
				return rule.Shape, rule.Color
			}
		}
	}
	return DefaultShape, DefaultColor
}

// ClassifyEdge returns the color of the first flag rule matching the flow.
func (e *Engine) ClassifyEdge(flow model.FlowKey) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, rule := range e.flags {
		if rule.Matches(flow.Source, flow.Destination) {
			return rule.Color, true
		}
	}
	return "", false
}

// RenderRules returns the render rules in priority order.
func (e *Engine) RenderRules() []RenderRule {
	if e == nil {
		return nil
	}
	return append([]RenderRule(nil), e.render...)
}

// FlagRuleCount returns the number of flag rules.
func (e *Engine) FlagRuleCount() int {
	if e == nil {
		return 0
	}
	return len(e.flags)
}

// Load builds an engine and the label overrides from configuration. Invalid
// entries are excluded and reported as *model.ConfigurationError; loading
// always completes. Later labels for the same address win.
func Load(cfg config.RulesConfig) (*Engine, map[string]string, []error) {
	var errs []error

	render := make([]RenderRule, 0, len(cfg.Render))
	for i, def := range cfg.Render {
		rule, err := NewRenderRule(def.Prefix, def.Shape, def.Color)
		if err != nil {
			errs = append(errs, &model.ConfigurationError{Kind: "render", Index: i, Msg: err.Error()})
			continue
		}
		render = append(render, rule)
	}

	flags := make([]FlagRule, 0, len(cfg.Flags))
	for i, def := range cfg.Flags {
		rule, err := NewFlagRule(def.Origins, def.Destinations, def.Color)
		if err != nil {
			errs = append(errs, &model.ConfigurationError{Kind: "flag", Index: i, Msg: err.Error()})
			continue
		}
		if len(rule.origins) == 0 || len(rule.destinations) == 0 {
			klog.Warningf("Flag rule #%d has no origins or no destinations and will never match.", i)
		}
		flags = append(flags, rule)
	}

	labels := make(map[string]string, len(cfg.Labels))
	for i, def := range cfg.Labels {
		address := strings.TrimSpace(def.Address)
		if address == "" || def.Label == "" {
			errs = append(errs, &model.ConfigurationError{Kind: "label", Index: i, Msg: "address and label are required"})
			continue
		}
		labels[address] = def.Label
	}

	for _, err := range errs {
		klog.Warningf("Ignoring rule: %v", err)
	}
	klog.Infof("Loaded %d render rules, %d flag rules and %d labels.", len(render), len(flags), len(labels))
	return NewEngine(render, flags), labels, errs
}
