package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/engine/flowaggregator"
	"TrafficGraph/internal/factory"
	"TrafficGraph/internal/graph"
	"TrafficGraph/internal/model"
	"TrafficGraph/internal/resolver"
	"TrafficGraph/internal/rules"
	_ "TrafficGraph/internal/writer" // Registers the output writers
	"TrafficGraph/pkg/pcap"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Session owns everything one analysis run needs: the resolver, the
// aggregator, the rule engine and the writers. Packets from one or many
// capture files feed a single aggregator through a pool of workers.
type Session struct {
	id   string
	name string

	resolver   resolver.Resolver
	aggregator *flowaggregator.FlowAggregator
	engine     *rules.Engine
	labels     map[string]string
	edgeColor  string
	annotator  graph.Annotator
	writers    []model.Writer
	closers    []io.Closer

	numWorkers  int
	channelSize int

	// Packet counters reported by readers and probes.
	totalPackets uint64
	ipPackets    uint64

	mu      sync.Mutex
	errs    []error
	sources []*pcap.Reader
}

// Option overrides a part of the session built from configuration.
type Option func(*Session)

// WithResolver replaces the resolver built from configuration.
func WithResolver(r resolver.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

// WithWriters replaces the writers built from configuration.
func WithWriters(writers ...model.Writer) Option {
	return func(s *Session) { s.writers = writers }
}

// WithAnnotator sets the node annotator.
func WithAnnotator(a graph.Annotator) Option {
	return func(s *Session) { s.annotator = a }
}

// New creates a session from cfg. Rejected rules are recorded as session
// errors; only resolver and writer construction failures are returned.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	s := &Session{
		id:          uuid.NewString(),
		name:        cfg.Session.Name,
		edgeColor:   cfg.Rules.EdgeColor,
		numWorkers:  cfg.Session.NumWorkers,
		channelSize: cfg.Session.SizeOfPacketChannel,
	}
	if s.numWorkers <= 0 {
		s.numWorkers = config.DefaultNumWorkers
	}
	if s.channelSize <= 0 {
		s.channelSize = config.DefaultChannelSize
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.resolver == nil {
		r, err := resolver.NewFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create resolver: %w", err)
		}
		s.resolver = r
	}

	engine, labels, ruleErrs := rules.Load(cfg.Rules)
	s.engine, s.labels = engine, labels
	for _, err := range ruleErrs {
		s.RecordError(err)
	}

	if s.writers == nil {
		writers, err := factory.CreateWriters(cfg)
		if err != nil {
			return nil, err
		}
		s.writers = writers
	}
	for _, w := range s.writers {
		if c, ok := w.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
	}

	if s.annotator == nil && cfg.GeoIP.DatabasePath != "" {
		geo, err := graph.OpenGeoIP(cfg.GeoIP.DatabasePath)
		if err != nil {
			klog.Warningf("GeoIP annotation disabled: %v", err)
			s.RecordError(err)
		} else {
			s.annotator = geo
			s.closers = append(s.closers, geo)
		}
	}

	s.aggregator = flowaggregator.New(s.resolver, 0)
	klog.Infof("Session '%s' (%s) created with %d workers and %d writers.", s.name, s.id, s.numWorkers, len(s.writers))
	return s, nil
}

// ID returns the session identifier stamped on every stored result.
func (s *Session) ID() string { return s.id }

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Resolver returns the resolver owned by the session.
func (s *Session) Resolver() resolver.Resolver { return s.resolver }

// Aggregator returns the session's flow aggregator.
func (s *Session) Aggregator() *flowaggregator.FlowAggregator { return s.aggregator }

// Run reads every file of reader and ingests its packets. Up to num_workers
// files are processed at once. Each file gets its own packet channel drained
// by a single worker, so the packets of one capture reach the aggregator in
// capture order. On cancellation Run stops reading and returns the context
// error; everything ingested so far stays valid.
func (s *Session) Run(ctx context.Context, reader *pcap.Reader) error {
	s.mu.Lock()
	s.sources = append(s.sources, reader)
	s.mu.Unlock()

	files := reader.Files()
	numReaders := s.numWorkers
	if len(files) < numReaders {
		numReaders = len(files)
	}

	fileChannel := make(chan string)
	var readerWg sync.WaitGroup
	readerWg.Add(numReaders)
	for i := 0; i < numReaders; i++ {
		go func() {
			defer readerWg.Done()
			for file := range fileChannel {
				s.ingestFile(ctx, reader, file)
			}
		}()
	}
	klog.Infof("Session '%s' reading %d files with %d workers.", s.name, len(files), numReaders)

feed:
	for _, file := range files {
		select {
		case fileChannel <- file:
		case <-ctx.Done():
			break feed
		}
	}
	close(fileChannel)
	readerWg.Wait()

	klog.Infof("Session '%s' ingested %d packets into %d flows.", s.name, s.aggregator.PacketCounter(), s.aggregator.FlowCount())
	return ctx.Err()
}

// ingestFile reads one capture while a single worker ingests its packets.
func (s *Session) ingestFile(ctx context.Context, reader *pcap.Reader, file string) {
	packetChannel := make(chan *model.PacketTuple, s.channelSize)
	var workerWg sync.WaitGroup
	workerWg.Add(1)
	go s.worker(ctx, packetChannel, &workerWg)

	if err := reader.ReadFile(ctx, file, packetChannel); err != nil && ctx.Err() == nil {
		klog.Warningf("Skipping capture file: %v", err)
	}
	// Let the worker drain what was already read.
	close(packetChannel)
	workerWg.Wait()
}

func (s *Session) worker(ctx context.Context, packets <-chan *model.PacketTuple, wg *sync.WaitGroup) {
	defer wg.Done()
	for tuple := range packets {
		s.IngestTuple(ctx, tuple)
	}
}

// IngestTuple feeds one decoded packet to the aggregator. Rejected packets
// are recorded and skipped.
func (s *Session) IngestTuple(ctx context.Context, tuple *model.PacketTuple) {
	if err := s.aggregator.IngestTuple(ctx, tuple); err != nil {
		klog.V(2).Infof("Skipping packet: %v", err)
		s.RecordError(err)
	}
}

// AddPacketCounts adds decoder counters reported by a remote probe.
func (s *Session) AddPacketCounts(total, ip uint64) {
	atomic.AddUint64(&s.totalPackets, total)
	atomic.AddUint64(&s.ipPackets, ip)
}

// RecordError adds a recoverable error to the session report.
func (s *Session) RecordError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// Errors returns every recoverable error met so far: rejected rules, capture
// read failures, rejected packets and writer failures.
func (s *Session) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := append([]error(nil), s.errs...)
	for _, src := range s.sources {
		errs = append(errs, src.Errors()...)
	}
	return errs
}

// Summary returns a point-in-time report of the session.
func (s *Session) Summary() *model.Summary {
	total, ip := atomic.LoadUint64(&s.totalPackets), atomic.LoadUint64(&s.ipPackets)
	s.mu.Lock()
	for _, src := range s.sources {
		total += src.TotalPackets()
		ip += src.IPPackets()
	}
	s.mu.Unlock()

	errs := s.Errors()
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}

	return &model.Summary{
		SessionID:      s.id,
		SessionName:    s.name,
		TotalPackets:   total,
		IPPackets:      ip,
		ProtocolTotals: s.aggregator.ProtocolTotals(),
		Flows:          s.aggregator.Flows(),
		Errors:         messages,
	}
}

// Build builds the graph over the current flows.
func (s *Session) Build() *model.Graph {
	return s.build(s.aggregator.Flows())
}

func (s *Session) build(flows []*model.FlowRecord) *model.Graph {
	return graph.Build(flows, s.engine,
		graph.WithName(s.name),
		graph.WithLabels(s.labels),
		graph.WithEdgeColor(s.edgeColor),
		graph.WithAnnotator(s.annotator),
	)
}

// Result returns the summary and the graph built from the same flows.
func (s *Session) Result() *model.Result {
	summary := s.Summary()
	return &model.Result{Summary: summary, Graph: s.build(summary.Flows)}
}

// Write runs every writer on the current result. A failing writer is logged
// and recorded; the remaining writers still run. The joined failures are
// returned.
func (s *Session) Write() error {
	result := s.Result()
	var errs []error
	for _, w := range s.writers {
		if err := w.Write(result); err != nil {
			err = fmt.Errorf("%s writer: %w", w.Name(), err)
			klog.Errorf("Error writing session '%s': %v", s.name, err)
			s.RecordError(err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases writers and databases held by the session.
func (s *Session) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
