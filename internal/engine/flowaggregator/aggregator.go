package flowaggregator

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"TrafficGraph/internal/metrics"
	"TrafficGraph/internal/model"
	"TrafficGraph/internal/resolver"

	"k8s.io/klog/v2"
)

const defaultShardCount = 64

// shard is a part of the sharded flow map, containing its own map and a mutex.
type shard struct {
	flows map[model.FlowKey]*model.FlowRecord
	mu    sync.Mutex
}

// FlowAggregator maintains one FlowRecord per directional (source, destination)
// pair. Records are only ever created or incremented; nothing is removed
// during a session. It is safe for use by multiple ingestion goroutines.
type FlowAggregator struct {
	resolver   resolver.Resolver
	shards     []*shard
	shardCount uint32

	// Global counters for the session summary.
	countersMu     sync.RWMutex
	packetCounter  uint64
	protocolTotals map[string]uint64
	flowCount      int
}

// New creates an aggregator that names new flow endpoints with r.
func New(r resolver.Resolver, numShards uint32) *FlowAggregator {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	if r == nil {
		r = resolver.Disabled{}
	}
	fa := &FlowAggregator{
		resolver:       r,
		shards:         make([]*shard, numShards),
		shardCount:     numShards,
		protocolTotals: make(map[string]uint64),
	}
	for i := range fa.shards {
		fa.shards[i] = &shard{flows: make(map[model.FlowKey]*model.FlowRecord)}
	}
	return fa
}

// getShard returns the appropriate shard for a given key.
func (fa *FlowAggregator) getShard(key model.FlowKey) *shard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key.String()))
	return fa.shards[hasher.Sum32()%fa.shardCount]
}

// IngestTuple is Ingest for a decoded packet tuple.
func (fa *FlowAggregator) IngestTuple(ctx context.Context, tuple *model.PacketTuple) error {
	return fa.ingest(ctx, tuple.SrcAddr, tuple.DstAddr, tuple.Protocol, tuple.Timestamp)
}

// Ingest records one packet from source to destination. Invalid input is
// rejected with a *model.ValidationError and leaves all state untouched.
//
// Endpoints are resolved when a pair is first seen, outside the shard lock.
// Goroutines racing on the same new pair may each call Resolve before one of
// them creates the record; the record is still created once, with the names
// of the goroutine that created it. A memoizing resolver such as
// resolver.AddressResolver keeps that to one network lookup per address.
func (fa *FlowAggregator) Ingest(ctx context.Context, source, destination, protocol string) error {
	return fa.ingest(ctx, source, destination, protocol, time.Time{})
}

func (fa *FlowAggregator) ingest(ctx context.Context, source, destination, protocol string, seen time.Time) error {
	if err := validate(source, destination, protocol); err != nil {
		metrics.PacketsRejected.Inc()
		return err
	}

	key := model.FlowKey{Source: source, Destination: destination}
	s := fa.getShard(key)

	s.mu.Lock()
	_, ok := s.flows[key]
	s.mu.Unlock()

	var sourceName, destinationName string
	if !ok {
		// Resolve outside the shard lock: lookups may block on the network.
		// Names are fixed at first sight and never refreshed.
		sourceName, _ = fa.resolver.Resolve(ctx, source)
		destinationName, _ = fa.resolver.Resolve(ctx, destination)
	}

	// Creation and the first increment happen under one lock so a record is
	// never observable with a zero count.
	s.mu.Lock()
	flow, ok := s.flows[key]
	created := !ok
	if created {
		flow = &model.FlowRecord{
			Key:             key,
			SourceName:      sourceName,
			DestinationName: destinationName,
			ProtocolCounts:  make(map[string]uint64),
		}
		s.flows[key] = flow
	}
	flow.ProtocolCounts[protocol]++
	flow.TotalCount++
	if !seen.IsZero() {
		if flow.FirstSeen.IsZero() || seen.Before(flow.FirstSeen) {
			flow.FirstSeen = seen
		}
		if seen.After(flow.LastSeen) {
			flow.LastSeen = seen
		}
	}
	s.mu.Unlock()

	fa.countersMu.Lock()
	fa.packetCounter++
	fa.protocolTotals[protocol]++
	if created {
		fa.flowCount++
	}
	flowCount := fa.flowCount
	fa.countersMu.Unlock()

	metrics.PacketsIngested.WithLabelValues(protocol).Inc()
	if created {
		metrics.Flows.Set(float64(flowCount))
		klog.V(2).Infof("New flow %s -> %s", source, destination)
	}
	return nil
}

func validate(source, destination, protocol string) error {
	switch {
	case strings.TrimSpace(source) == "":
		return &model.ValidationError{Field: "source address", Value: source, Msg: "must not be empty"}
	case strings.TrimSpace(destination) == "":
		return &model.ValidationError{Field: "destination address", Value: destination, Msg: "must not be empty"}
	case strings.TrimSpace(protocol) == "":
		return &model.ValidationError{Field: "protocol", Value: protocol, Msg: "must not be empty"}
	}
	return nil
}

// Flow returns a copy of the flow for key.
func (fa *FlowAggregator) Flow(key model.FlowKey) (*model.FlowRecord, bool) {
	s := fa.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if flow, ok := s.flows[key]; ok {
		return flow.Copy(), true
	}
	return nil, false
}

// Flows returns deep copies of all flows, sorted by key. The result is a
// point-in-time view that later ingestion does not affect.
func (fa *FlowAggregator) Flows() []*model.FlowRecord {
	var flows []*model.FlowRecord
	for _, s := range fa.shards {
		s.mu.Lock()
		for _, flow := range s.flows {
			flows = append(flows, flow.Copy())
		}
		s.mu.Unlock()
	}
	model.SortFlows(flows)
	return flows
}

// FlowCount returns the number of distinct flows.
func (fa *FlowAggregator) FlowCount() int {
	fa.countersMu.RLock()
	defer fa.countersMu.RUnlock()
	return fa.flowCount
}

// PacketCounter returns the number of packets ingested across all flows.
func (fa *FlowAggregator) PacketCounter() uint64 {
	fa.countersMu.RLock()
	defer fa.countersMu.RUnlock()
	return fa.packetCounter
}

// ProtocolTotals returns a copy of the per-protocol packet totals.
func (fa *FlowAggregator) ProtocolTotals() map[string]uint64 {
	fa.countersMu.RLock()
	defer fa.countersMu.RUnlock()
	totals := make(map[string]uint64, len(fa.protocolTotals))
	for proto, count := range fa.protocolTotals {
		totals[proto] = count
	}
	return totals
}

// Protocols returns the protocol names seen so far, sorted.
func (fa *FlowAggregator) Protocols() []string {
	totals := fa.ProtocolTotals()
	protos := make([]string, 0, len(totals))
	for proto := range totals {
		protos = append(protos, proto)
	}
	sort.Strings(protos)
	return protos
}
