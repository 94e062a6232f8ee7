package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trafficgraph"

var (
	// PacketsDecoded counts every packet read from a capture source, IP or not.
	PacketsDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_decoded_total",
		Help:      "Packets read from capture sources.",
	})

	// PacketsIngested counts tuples accepted by the aggregator, by protocol.
	PacketsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_ingested_total",
		Help:      "IP packets aggregated into flows.",
	}, []string{"protocol"})

	// PacketsRejected counts tuples rejected by validation.
	PacketsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_rejected_total",
		Help:      "Packet tuples rejected by validation.",
	})

	// Flows tracks the number of distinct directional flows.
	Flows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "flows",
		Help:      "Distinct source/destination flows.",
	})

	// ResolverRequests counts resolution requests by outcome: hit, negative_hit, resolved, failed.
	ResolverRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolver_requests_total",
		Help:      "Reverse DNS requests by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(PacketsDecoded, PacketsIngested, PacketsRejected, Flows, ResolverRequests)
}
