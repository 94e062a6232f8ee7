package factory

import (
	"fmt"
	"sort"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/model"

	"k8s.io/klog/v2"
)

// WriterFactory defines a function that creates a writer from its definition.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Types returns the registered writer types, sorted.
func Types() []string {
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// CreateWriters creates every enabled writer listed in the config.
func CreateWriters(cfg *config.Config) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Output.Writers {
		if !def.Enabled {
			continue
		}
		klog.Infof("Creating writer of type '%s'", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		writer, err := factory(def)
		if err != nil {
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}

		writers = append(writers, writer)
	}

	return writers, nil
}
