package rules

import (
	"fmt"
	"strings"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/model"
)

// ParseRenderRule parses the command line form "target=10.0.,shape=box,color=red".
// Shape and color are optional.
func ParseRenderRule(entry string) (config.RenderRuleDef, error) {
	fields, err := splitFields(entry, "render", map[string]bool{"target": true, "shape": true, "color": true})
	if err != nil {
		return config.RenderRuleDef{}, err
	}
	if fields["target"] == "" {
		return config.RenderRuleDef{}, &model.ConfigurationError{Kind: "render", Entry: entry, Msg: "target is required"}
	}
	return config.RenderRuleDef{Prefix: fields["target"], Shape: fields["shape"], Color: fields["color"]}, nil
}

// ParseFlagRule parses the command line form
// "origin=10.0.0.1|10.0.0.2,destination=8.8.8.8,color=red". Color defaults
// to black.
func ParseFlagRule(entry string) (config.FlagRuleDef, error) {
	fields, err := splitFields(entry, "flag", map[string]bool{"origin": true, "destination": true, "color": true})
	if err != nil {
		return config.FlagRuleDef{}, err
	}
	color := fields["color"]
	if color == "" {
		color = DefaultColor
	}
	return config.FlagRuleDef{
		Origins:      splitAddresses(fields["origin"]),
		Destinations: splitAddresses(fields["destination"]),
		Color:        color,
	}, nil
}

// ParseLabel parses the command line form "10.0.0.1=gateway".
func ParseLabel(entry string) (config.LabelDef, error) {
	address, label, ok := strings.Cut(entry, "=")
	address = strings.TrimSpace(address)
	if !ok || address == "" || label == "" || strings.Contains(label, "=") {
		return config.LabelDef{}, &model.ConfigurationError{Kind: "label", Entry: entry, Msg: `must use the form "address=label"`}
	}
	return config.LabelDef{Address: address, Label: label}, nil
}

// ApplyFlags merges command line rule definitions into cfg. Command line
// render and flag rules take priority over those from the file, and command
// line labels replace file labels for the same address. Malformed entries
// are skipped and returned.
func ApplyFlags(cfg *config.RulesConfig, renderEntries, flagEntries, labelEntries []string) []error {
	var errs []error

	var render []config.RenderRuleDef
	for _, entry := range renderEntries {
		def, err := ParseRenderRule(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		render = append(render, def)
	}
	cfg.Render = append(render, cfg.Render...)

	var flags []config.FlagRuleDef
	for _, entry := range flagEntries {
		def, err := ParseFlagRule(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		flags = append(flags, def)
	}
	cfg.Flags = append(flags, cfg.Flags...)

	for _, entry := range labelEntries {
		def, err := ParseLabel(entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cfg.Labels = append(cfg.Labels, def)
	}
	return errs
}

func splitFields(entry, kind string, allowed map[string]bool) (map[string]string, error) {
	items := strings.Split(entry, ",")
	if len(items) > len(allowed) {
		return nil, &model.ConfigurationError{Kind: kind, Entry: entry, Msg: fmt.Sprintf("expected no more than %d values", len(allowed))}
	}
	fields := make(map[string]string, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || !allowed[key] {
			return nil, &model.ConfigurationError{Kind: kind, Entry: entry, Msg: fmt.Sprintf("unknown item %q", item)}
		}
		if _, dup := fields[key]; dup {
			return nil, &model.ConfigurationError{Kind: kind, Entry: entry, Msg: fmt.Sprintf("%s given twice", key)}
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields, nil
}

func splitAddresses(value string) []string {
	var addresses []string
	for _, addr := range strings.Split(value, "|") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addresses = append(addresses, addr)
		}
	}
	return addresses
}
