package model

import (
	"errors"
	"fmt"
)

// ErrSourceNotFound is returned when a capture source is missing or unreadable.
// It is the only error that aborts a run.
var ErrSourceNotFound = errors.New("capture source not found")

// ValidationError reports a packet tuple that was rejected by the aggregator.
// The packet is skipped and ingestion continues.
type ValidationError struct {
	Field string
	Value string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Msg)
}

// ConfigurationError reports a rule or label definition rejected at load time.
// The offending entry is excluded from the rule set.
type ConfigurationError struct {
	Kind  string // "render", "flag" or "label"
	Index int
	Entry string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("%s rule %q rejected: %s", e.Kind, e.Entry, e.Msg)
	}
	return fmt.Sprintf("%s rule #%d rejected: %s", e.Kind, e.Index, e.Msg)
}

// IsRecoverable reports whether err may be logged and skipped.
// Only source availability failures are fatal.
func IsRecoverable(err error) bool {
	return err != nil && !errors.Is(err, ErrSourceNotFound)
}
