package model

import (
	"sort"
	"time"
)

// PacketTuple holds the fields the aggregator needs from a single decoded IP packet.
type PacketTuple struct {
	Timestamp time.Time
	SrcAddr   string
	DstAddr   string
	Protocol  string // Transport protocol name, e.g. "TCP", "UDP", "ICMPv4".
}

// FlowKey identifies a directional flow. A->B and B->A are different keys.
type FlowKey struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// String returns the key in "source destination" form.
func (k FlowKey) String() string {
	return k.Source + " " + k.Destination
}

// Less orders keys by source, then destination.
func (k FlowKey) Less(other FlowKey) bool {
	if k.Source != other.Source {
		return k.Source < other.Source
	}
	return k.Destination < other.Destination
}

// FlowRecord is the aggregated traffic between one source and one destination.
// TotalCount always equals the sum of ProtocolCounts.
type FlowRecord struct {
	Key             FlowKey           `json:"key"`
	SourceName      string            `json:"source_name,omitempty"` // Resolved hostname, empty when unknown.
	DestinationName string            `json:"destination_name,omitempty"`
	ProtocolCounts  map[string]uint64 `json:"protocol_counts"`
	TotalCount      uint64            `json:"total_count"`
	FirstSeen       time.Time         `json:"first_seen"`
	LastSeen        time.Time         `json:"last_seen"`
}

// Copy returns a deep copy of the record.
func (f *FlowRecord) Copy() *FlowRecord {
	c := *f
	c.ProtocolCounts = make(map[string]uint64, len(f.ProtocolCounts))
	for proto, count := range f.ProtocolCounts {
		c.ProtocolCounts[proto] = count
	}
	return &c
}

// Protocols returns the protocol names seen on the flow, sorted.
func (f *FlowRecord) Protocols() []string {
	protos := make([]string, 0, len(f.ProtocolCounts))
	for proto := range f.ProtocolCounts {
		protos = append(protos, proto)
	}
	sort.Strings(protos)
	return protos
}

// SortFlows orders flows by key in place.
func SortFlows(flows []*FlowRecord) {
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].Key.Less(flows[j].Key)
	})
}
