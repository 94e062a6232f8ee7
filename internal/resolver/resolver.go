package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/metrics"

	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

// Lookuper performs reverse lookups. *net.Resolver satisfies it.
type Lookuper interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Resolver maps addresses to hostnames.
type Resolver interface {
	// Resolve returns the hostname for address, or false when none is known.
	Resolve(ctx context.Context, address string) (string, bool)
}

// Stats are the cumulative counters of an AddressResolver.
type Stats struct {
	Hits         uint64 `json:"hits"`          // Answered from the positive cache.
	NegativeHits uint64 `json:"negative_hits"` // Answered from the negative cache.
	Lookups      uint64 `json:"lookups"`       // Network lookups issued.
	Failures     uint64 `json:"failures"`      // Lookups that ended in the negative cache.
}

// AddressResolver is a memoizing reverse DNS resolver. Each address is looked
// up at most once per instance: successes go to the positive cache, any
// failure goes to the negative cache and is never retried. Concurrent
// requests for the same uncached address share a single lookup.
type AddressResolver struct {
	lookup  Lookuper
	timeout time.Duration

	mu       sync.RWMutex
	resolved map[string]string
	failed   map[string]struct{}
	stats    Stats

	group singleflight.Group
}

// New creates a resolver over the given backend.
func New(lookup Lookuper, timeout time.Duration) *AddressResolver {
	if timeout <= 0 {
		timeout = config.DefaultResolverTimeout
	}
	return &AddressResolver{
		lookup:   lookup,
		timeout:  timeout,
		resolved: make(map[string]string),
		failed:   make(map[string]struct{}),
	}
}

// NewFromConfig builds the resolver described by cfg. A disabled resolver
// never returns a hostname and never touches the network.
func NewFromConfig(cfg *config.Config) (Resolver, error) {
	if !cfg.Resolver.Enabled {
		klog.Info("Reverse DNS resolution disabled.")
		return Disabled{}, nil
	}
	timeout, err := cfg.ResolverTimeout()
	if err != nil {
		return nil, err
	}

	var lookup Lookuper = net.DefaultResolver
	if server := cfg.Resolver.DNSServer; server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		lookup = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{Timeout: timeout}
				return d.DialContext(ctx, "udp", server)
			},
		}
		klog.Infof("Using DNS server %s for reverse lookups.", server)
	}
	return New(lookup, timeout), nil
}

// Resolve returns the cached or freshly looked up hostname for address.
// A caller whose ctx ends while a lookup is in flight gets no hostname, but
// the lookup itself runs on, bounded only by the resolver timeout, and its
// outcome is what gets cached and shared with the other callers.
func (r *AddressResolver) Resolve(ctx context.Context, address string) (string, bool) {
	if name, ok, cached := r.cached(address); cached {
		return name, ok
	}

	lookupCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(address, func() (interface{}, error) {
		// Another caller may have finished the lookup between our cache
		// check and entering the group.
		if name, ok, cached := r.cached(address); cached {
			return result{name: name, ok: ok}, nil
		}
		name, err := r.lookupOnce(lookupCtx, address)
		r.store(address, name, err)
		return result{name: name, ok: err == nil}, nil
	})

	select {
	case res := <-ch:
		v := res.Val.(result)
		return v.name, v.ok
	case <-ctx.Done():
		klog.V(2).Infof("Stopped waiting for reverse lookup of %s: %v", address, ctx.Err())
		return "", false
	}
}

type result struct {
	name string
	ok   bool
}

func (r *AddressResolver) cached(address string) (name string, ok bool, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, failed := r.failed[address]; failed {
		r.stats.NegativeHits++
		metrics.ResolverRequests.WithLabelValues("negative_hit").Inc()
		return "", false, true
	}
	if name, found := r.resolved[address]; found {
		r.stats.Hits++
		metrics.ResolverRequests.WithLabelValues("hit").Inc()
		return name, true, true
	}
	return "", false, false
}

func (r *AddressResolver) lookupOnce(ctx context.Context, address string) (string, error) {
	if net.ParseIP(address) == nil {
		return "", fmt.Errorf("malformed address %q", address)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.Lock()
	r.stats.Lookups++
	r.mu.Unlock()

	names, err := r.lookup.LookupAddr(ctx, address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("lookup timed out after %s: %w", r.timeout, err)
		}
		return "", err
	}
	for _, name := range names {
		if name = strings.TrimSuffix(name, "."); name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("no PTR record for %s", address)
}

func (r *AddressResolver) store(address, name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.failed[address] = struct{}{}
		r.stats.Failures++
		metrics.ResolverRequests.WithLabelValues("failed").Inc()
		klog.V(2).Infof("Reverse lookup for %s failed, will not retry: %v", address, err)
		return
	}
	r.resolved[address] = name
	metrics.ResolverRequests.WithLabelValues("resolved").Inc()
	klog.V(2).Infof("Resolved %s to %s", address, name)
}

// Stats returns a copy of the resolver counters.
func (r *AddressResolver) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Snapshot returns copies of the positive and negative caches. Failed
// addresses are sorted.
func (r *AddressResolver) Snapshot() (resolved map[string]string, failed []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved = make(map[string]string, len(r.resolved))
	for addr, name := range r.resolved {
		resolved[addr] = name
	}
	failed = make([]string, 0, len(r.failed))
	for addr := range r.failed {
		failed = append(failed, addr)
	}
	sort.Strings(failed)
	return resolved, failed
}

// Disabled is a Resolver that never resolves anything.
type Disabled struct{}

// Resolve always reports no hostname.
func (Disabled) Resolve(context.Context, string) (string, bool) {
	return "", false
}
