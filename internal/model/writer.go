package model

// Summary is the read-only session report: decoder counters, aggregator
// totals and the flows themselves.
type Summary struct {
	SessionID      string            `json:"session_id"`
	SessionName    string            `json:"session_name"`
	TotalPackets   uint64            `json:"total_packets"`
	IPPackets      uint64            `json:"ip_packets"`
	ProtocolTotals map[string]uint64 `json:"protocol_totals"`
	Flows          []*FlowRecord     `json:"flows"`
	Errors         []string          `json:"errors,omitempty"`
}

// Result bundles everything a writer may persist at the end of a session.
type Result struct {
	Summary *Summary `json:"summary"`
	Graph   *Graph   `json:"graph"`
}

// Writer defines a generic interface for persisting a finished session.
type Writer interface {
	// Write persists the result. Implementations must not retain it.
	Write(result *Result) error

	// Name returns the writer type, e.g. "dot" or "clickhouse".
	Name() string
}
